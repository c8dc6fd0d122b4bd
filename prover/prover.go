// Package prover wraps Groth16 proof generation for gene commitments:
// compile once, set up once, then prove and verify per monkey.
package prover

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	frmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Prover holds the compiled gene-commitment circuit and its keys.
type Prover struct {
	mu    sync.Mutex
	curve ecc.ID
	cs    constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey
}

// Proof bundles a generated proof with its public witness.
type Proof struct {
	Proof  groth16.Proof
	Public witness.Witness

	// Commitment is the public input the proof binds to.
	Commitment *big.Int
}

// New creates an uninitialized prover on BN254 (Ethereum's alt_bn128).
func New() *Prover {
	return &Prover{curve: ecc.BN254}
}

// Setup compiles the circuit and runs the Groth16 trusted setup. It is
// idempotent; later calls reuse the cached keys.
func (p *Prover) Setup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cs != nil {
		return nil
	}

	var circuit GeneCommitmentCircuit
	cs, err := frontend.Compile(p.curve.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("circuit compilation failed: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	p.cs, p.pk, p.vk = cs, pk, vk
	return nil
}

// ProveGenes proves knowledge of genes behind GeneCommitment(genes).
func (p *Prover) ProveGenes(genes uint64) (*Proof, error) {
	if err := p.Setup(); err != nil {
		return nil, err
	}

	commitment := GeneCommitment(genes)
	assignment := &GeneCommitmentCircuit{
		Genes:      genes,
		Commitment: commitment,
	}
	w, err := frontend.NewWitness(assignment, p.curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness failed: %w", err)
	}
	proof, err := groth16.Prove(p.cs, p.pk, w)
	if err != nil {
		return nil, fmt.Errorf("prove failed: %w", err)
	}
	public, err := w.Public()
	if err != nil {
		return nil, err
	}
	return &Proof{Proof: proof, Public: public, Commitment: commitment}, nil
}

// Verify checks a proof against the stored verifying key.
func (p *Prover) Verify(proof *Proof) error {
	if err := p.Setup(); err != nil {
		return err
	}
	return groth16.Verify(proof.Proof, p.vk, proof.Public)
}

// GeneCommitment computes the native MiMC commitment for a gene code.
// It matches the in-circuit hash: one field element in, one out.
func GeneCommitment(genes uint64) *big.Int {
	h := frmimc.NewMiMC()
	block := make([]byte, frmimc.BlockSize)
	binary.BigEndian.PutUint64(block[len(block)-8:], genes)
	h.Write(block)
	return new(big.Int).SetBytes(h.Sum(nil))
}
