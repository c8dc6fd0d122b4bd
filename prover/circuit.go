package prover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// GeneCommitmentCircuit proves knowledge of a gene code matching a public
// MiMC commitment without revealing the genes. A seller can publish the
// commitment for a listed monkey and prove trait claims off-band; the
// verifier learns nothing beyond the match.
type GeneCommitmentCircuit struct {
	// Genes is the private 16-digit gene code.
	Genes frontend.Variable

	// Commitment is the public MiMC hash of the gene code.
	Commitment frontend.Variable `gnark:",public"`
}

// Define asserts Commitment == MiMC(Genes).
func (c *GeneCommitmentCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Genes)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}
