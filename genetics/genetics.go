// Package genetics derives child gene codes from two parents. It is pure
// and stateless: identical parents plus identical auxiliary entropy always
// produce identical offspring.
//
// Gene codes are 16 decimal digits wide. Mixing works per digit position:
// a MiMC hash over the order-normalized parent pair and the entropy word
// yields a selector; bit i of the selector decides which parent supplies
// digit i of the child. Normalizing the pair (smaller code first) makes
// the rule insensitive to argument order.
package genetics

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// GeneDigits is the fixed width of a gene code in decimal digits.
const GeneDigits = 16

// Mix derives a child gene code from two parent codes and an auxiliary
// entropy word. Mix(a, b, e) == Mix(b, a, e) for all inputs.
func Mix(genesA, genesB, entropy uint64) uint64 {
	lo, hi := genesA, genesB
	if lo > hi {
		lo, hi = hi, lo
	}
	selector := selectorBits(lo, hi, entropy)

	var child uint64
	pow := uint64(1)
	for i := 0; i < GeneDigits; i++ {
		digit := lo / pow % 10
		if selector>>uint(i)&1 == 1 {
			digit = hi / pow % 10
		}
		child += digit * pow
		pow *= 10
	}
	return child
}

// ChildGeneration returns the generation of an offspring of parents at
// generations a and b.
func ChildGeneration(a, b uint32) uint32 {
	if a > b {
		return a + 1
	}
	return b + 1
}

// selectorBits hashes the normalized parent pair and entropy word with
// MiMC over the BN254 scalar field and returns the low 64 bits.
func selectorBits(lo, hi, entropy uint64) uint64 {
	h := mimc.NewMiMC()
	h.Write(feBlock(lo))
	h.Write(feBlock(hi))
	h.Write(feBlock(entropy))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[len(sum)-8:])
}

// feBlock encodes v as a canonical 32-byte field element block.
func feBlock(v uint64) []byte {
	b := make([]byte, mimc.BlockSize)
	binary.BigEndian.PutUint64(b[len(b)-8:], v)
	return b
}
