// Package commitment computes a MiMC commitment over the full ledger
// state. Equal states hash equal; any committed mutation yields a new
// root. The hash runs over the canonical snapshot forms (assets in id
// order, sorted approval/operator/offer/balance tables), so the root is
// independent of map iteration order.
package commitment

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/holiman/uint256"

	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/market"
)

// RootSize is the commitment width in bytes.
const RootSize = 32

// Root commits to a registry snapshot plus the offer book and vault
// balances.
func Root(snap *ledger.Snapshot, offers []market.Offer, balances map[ledger.Identity]*uint256.Int) [RootSize]byte {
	h := mimc.NewMiMC()

	h.Write(feUint64(uint64(snap.Gen0Minted)))
	h.Write(feUint64(snap.Sequence))

	for _, a := range snap.Assets {
		h.Write(feUint64(a.ID))
		h.Write(feUint64(a.Genes))
		h.Write(feUint64(uint64(a.Generation)))
		h.Write(feIdentity(a.Owner))
		h.Write(feUint64(a.Parents[0]))
		h.Write(feUint64(a.Parents[1]))
	}

	for _, ap := range snap.Approvals {
		h.Write(feUint64(ap.TokenID))
		h.Write(feIdentity(ap.Spender))
	}
	for _, op := range snap.Operators {
		h.Write(feIdentity(op.Owner))
		h.Write(feIdentity(op.Operator))
	}

	for _, offer := range offers {
		h.Write(feUint64(offer.TokenID))
		h.Write(feIdentity(offer.Seller))
		hi, lo := feHalves(offer.Price)
		h.Write(hi)
		h.Write(lo)
	}

	for _, who := range sortedHolders(balances) {
		h.Write(feIdentity(who))
		hi, lo := feHalves(balances[who])
		h.Write(hi)
		h.Write(lo)
	}

	var root [RootSize]byte
	copy(root[:], h.Sum(nil))
	return root
}

// feUint64 encodes v as a canonical field element block.
func feUint64(v uint64) []byte {
	b := make([]byte, mimc.BlockSize)
	binary.BigEndian.PutUint64(b[len(b)-8:], v)
	return b
}

// feIdentity maps an arbitrary identity string into the field by hashing
// and zeroing the top byte.
func feIdentity(who ledger.Identity) []byte {
	sum := sha256.Sum256([]byte(who))
	sum[0] = 0
	return sum[:]
}

// feHalves splits a 256-bit value into two 128-bit blocks; each half is
// far below the BN254 modulus, so both are canonical.
func feHalves(v *uint256.Int) (hi, lo []byte) {
	var raw [32]byte
	if v != nil {
		raw = v.Bytes32()
	}
	hi = make([]byte, mimc.BlockSize)
	lo = make([]byte, mimc.BlockSize)
	copy(hi[16:], raw[:16])
	copy(lo[16:], raw[16:])
	return hi, lo
}

func sortedHolders(balances map[ledger.Identity]*uint256.Int) []ledger.Identity {
	out := make([]ledger.Identity, 0, len(balances))
	for who := range balances {
		out = append(out, who)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
