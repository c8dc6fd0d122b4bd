package commitment_test

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/cryptomonkeys/go-monkeychain/commitment"
	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/market"
)

func buildState(t *testing.T) (*ledger.Registry, *market.Market, *market.Vault) {
	t.Helper()
	registry := ledger.NewRegistry(ledger.RegistryConfig{Owner: "alice"})
	vault := market.NewVault()
	m := market.New("market", registry, vault)

	for i := 0; i < 3; i++ {
		if _, err := registry.MintFounder(1111111111111111*uint64(i+1), "alice"); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if err := registry.SetOperator("alice", "market", true, "alice"); err != nil {
		t.Fatalf("operator grant: %v", err)
	}
	if err := m.SetOffer(uint256.NewInt(5), 1, "alice"); err != nil {
		t.Fatalf("set offer: %v", err)
	}
	vault.Deposit("bob", uint256.NewInt(100))
	vault.Deposit("carol", uint256.NewInt(7))
	return registry, m, vault
}

func root(registry *ledger.Registry, m *market.Market, vault *market.Vault) [commitment.RootSize]byte {
	return commitment.Root(registry.Snapshot(), m.Offers(), vault.Balances())
}

func TestRoot(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		registry, m, vault := buildState(t)
		a := root(registry, m, vault)
		b := root(registry, m, vault)
		if a != b {
			t.Error("same state hashed to different roots")
		}
	})

	t.Run("EqualStatesEqualRoots", func(t *testing.T) {
		r1, m1, v1 := buildState(t)
		r2, m2, v2 := buildState(t)
		if root(r1, m1, v1) != root(r2, m2, v2) {
			t.Error("independently built equal states hashed differently")
		}
	})

	t.Run("TransferChangesRoot", func(t *testing.T) {
		registry, m, vault := buildState(t)
		before := root(registry, m, vault)
		if err := registry.Transfer("alice", "bob", 2, "alice"); err != nil {
			t.Fatalf("transfer: %v", err)
		}
		if root(registry, m, vault) == before {
			t.Error("transfer left root unchanged")
		}
	})

	t.Run("OfferChangesRoot", func(t *testing.T) {
		registry, m, vault := buildState(t)
		before := root(registry, m, vault)
		if err := m.SetOffer(uint256.NewInt(9), 1, "alice"); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if root(registry, m, vault) == before {
			t.Error("repricing left root unchanged")
		}
	})

	t.Run("BalanceChangesRoot", func(t *testing.T) {
		registry, m, vault := buildState(t)
		before := root(registry, m, vault)
		vault.Deposit("bob", uint256.NewInt(1))
		if root(registry, m, vault) == before {
			t.Error("deposit left root unchanged")
		}
	})

	t.Run("ApprovalChangesRoot", func(t *testing.T) {
		registry, m, vault := buildState(t)
		before := root(registry, m, vault)
		if err := registry.Approve(2, "bob", "alice"); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if root(registry, m, vault) == before {
			t.Error("approval left root unchanged")
		}
	})

	t.Run("NonZero", func(t *testing.T) {
		registry, m, vault := buildState(t)
		if root(registry, m, vault) == [commitment.RootSize]byte{} {
			t.Error("root is all zeros")
		}
	})
}
