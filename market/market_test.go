package market_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/market"
)

const (
	alice ledger.Identity = "alice"
	bob   ledger.Identity = "bob"
	carol ledger.Identity = "carol"
)

// newMarket builds a registry with n founders owned by alice, who has
// granted the market operator status, plus an empty vault.
func newMarket(t *testing.T, founders int) (*market.Market, *ledger.Registry, *market.Vault) {
	t.Helper()
	registry := ledger.NewRegistry(ledger.RegistryConfig{Owner: alice})
	vault := market.NewVault()
	m := market.New("market", registry, vault)

	for i := 0; i < founders; i++ {
		if _, err := registry.MintFounder(1111111111111111*uint64(i%9+1), alice); err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
	}
	if err := registry.SetOperator(alice, m.Identity(), true, alice); err != nil {
		t.Fatalf("operator grant: %v", err)
	}
	return m, registry, vault
}

func price(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func TestSetOffer(t *testing.T) {
	t.Run("ListedBySeller", func(t *testing.T) {
		m, _, _ := newMarket(t, 2)

		if err := m.SetOffer(price(5), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		offer, ok := m.OfferFor(1)
		if !ok {
			t.Fatal("offer missing")
		}
		if offer.Seller != alice || !offer.Price.Eq(price(5)) {
			t.Errorf("offer = %+v, want seller %s at 5", offer, alice)
		}
	})

	t.Run("NonOwnerRejected", func(t *testing.T) {
		m, _, _ := newMarket(t, 1)
		if err := m.SetOffer(price(5), 1, bob); !errors.Is(err, ledger.ErrNotOwner) {
			t.Errorf("offer by non-owner: %v, want ErrNotOwner", err)
		}
	})

	t.Run("RequiresOperatorGrant", func(t *testing.T) {
		m, registry, _ := newMarket(t, 1)
		if err := registry.Transfer(alice, bob, 1, alice); err != nil {
			t.Fatalf("transfer: %v", err)
		}
		// Bob owns the monkey but never granted the market operator status.
		if err := m.SetOffer(price(5), 1, bob); !errors.Is(err, ledger.ErrUnauthorized) {
			t.Errorf("offer without grant: %v, want ErrUnauthorized", err)
		}
	})

	t.Run("OverwriteReplacesPrice", func(t *testing.T) {
		m, _, _ := newMarket(t, 1)

		if err := m.SetOffer(price(5), 1, alice); err != nil {
			t.Fatalf("first offer: %v", err)
		}
		if err := m.SetOffer(price(7), 1, alice); err != nil {
			t.Fatalf("second offer: %v", err)
		}
		offer, ok := m.OfferFor(1)
		if !ok {
			t.Fatal("offer missing")
		}
		if !offer.Price.Eq(price(7)) {
			t.Errorf("price = %s, want 7", offer.Price.Dec())
		}
		if got := m.ActiveOffers(); len(got) != 1 {
			t.Errorf("active offers = %v, want exactly one", got)
		}
	})

	t.Run("PriceNotAliased", func(t *testing.T) {
		m, _, _ := newMarket(t, 1)
		p := price(5)
		if err := m.SetOffer(p, 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		p.SetUint64(999)

		offer, _ := m.OfferFor(1)
		if !offer.Price.Eq(price(5)) {
			t.Errorf("price = %s, want 5", offer.Price.Dec())
		}
	})
}

func TestRemoveOffer(t *testing.T) {
	t.Run("SellerRemoves", func(t *testing.T) {
		m, _, _ := newMarket(t, 1)
		if err := m.SetOffer(price(5), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if err := m.RemoveOffer(1, alice); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if _, ok := m.OfferFor(1); ok {
			t.Error("offer survived removal")
		}
	})

	t.Run("StrangerRejected", func(t *testing.T) {
		m, _, _ := newMarket(t, 1)
		if err := m.SetOffer(price(5), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if err := m.RemoveOffer(1, bob); !errors.Is(err, ledger.ErrUnauthorized) {
			t.Errorf("remove by stranger: %v, want ErrUnauthorized", err)
		}
	})

	t.Run("NoOffer", func(t *testing.T) {
		m, _, _ := newMarket(t, 1)
		if err := m.RemoveOffer(1, alice); !errors.Is(err, market.ErrNoActiveOffer) {
			t.Errorf("remove without offer: %v, want ErrNoActiveOffer", err)
		}
	})
}

func TestBuy(t *testing.T) {
	t.Run("ExactPaymentSettles", func(t *testing.T) {
		m, registry, vault := newMarket(t, 1)
		vault.Deposit(bob, price(10))

		if err := m.SetOffer(price(4), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if err := m.Buy(1, price(4), bob); err != nil {
			t.Fatalf("buy: %v", err)
		}

		owner, _ := registry.OwnerOf(1)
		if owner != bob {
			t.Errorf("owner = %s, want %s", owner, bob)
		}
		if got := vault.BalanceOf(bob); !got.Eq(price(6)) {
			t.Errorf("buyer balance = %s, want 6", got.Dec())
		}
		if got := vault.BalanceOf(alice); !got.Eq(price(4)) {
			t.Errorf("seller balance = %s, want 4", got.Dec())
		}
		if _, ok := m.OfferFor(1); ok {
			t.Error("offer survived purchase")
		}
	})

	t.Run("UnderpaymentRejected", func(t *testing.T) {
		m, registry, vault := newMarket(t, 4)
		vault.Deposit(bob, price(10))

		if err := m.SetOffer(price(4), 4, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if err := m.Buy(4, price(3), bob); !errors.Is(err, market.ErrIncorrectPayment) {
			t.Fatalf("underpaid buy: %v, want ErrIncorrectPayment", err)
		}

		// Nothing moved.
		owner, _ := registry.OwnerOf(4)
		if owner != alice {
			t.Errorf("owner = %s, want %s", owner, alice)
		}
		if got := vault.BalanceOf(bob); !got.Eq(price(10)) {
			t.Errorf("buyer balance = %s, want 10", got.Dec())
		}
		if _, ok := m.OfferFor(4); !ok {
			t.Error("offer voided by failed buy")
		}
	})

	t.Run("OverpaymentRejected", func(t *testing.T) {
		m, _, vault := newMarket(t, 1)
		vault.Deposit(bob, price(10))

		if err := m.SetOffer(price(4), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if err := m.Buy(1, price(5), bob); !errors.Is(err, market.ErrIncorrectPayment) {
			t.Errorf("overpaid buy: %v, want ErrIncorrectPayment", err)
		}
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		m, registry, vault := newMarket(t, 1)
		vault.Deposit(bob, price(3))

		if err := m.SetOffer(price(4), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}
		if err := m.Buy(1, price(4), bob); !errors.Is(err, market.ErrInsufficientFunds) {
			t.Fatalf("broke buy: %v, want ErrInsufficientFunds", err)
		}
		owner, _ := registry.OwnerOf(1)
		if owner != alice {
			t.Errorf("owner = %s, want %s", owner, alice)
		}
		if _, ok := m.OfferFor(1); !ok {
			t.Error("offer voided by failed buy")
		}
	})

	t.Run("NoOffer", func(t *testing.T) {
		m, _, vault := newMarket(t, 1)
		vault.Deposit(bob, price(10))
		if err := m.Buy(1, price(4), bob); !errors.Is(err, market.ErrNoActiveOffer) {
			t.Errorf("buy without offer: %v, want ErrNoActiveOffer", err)
		}
	})

	t.Run("StaleSellerRolledBack", func(t *testing.T) {
		m, registry, vault := newMarket(t, 1)
		vault.Deposit(carol, price(10))

		if err := m.SetOffer(price(4), 1, alice); err != nil {
			t.Fatalf("set offer: %v", err)
		}

		// Fabricate a stale offer: the recorded seller loses operator
		// coverage before settlement.
		if err := registry.SetOperator(alice, m.Identity(), false, alice); err != nil {
			t.Fatalf("revoke grant: %v", err)
		}
		if err := m.Buy(1, price(4), carol); !errors.Is(err, ledger.ErrUnauthorized) {
			t.Fatalf("stale buy: %v, want ErrUnauthorized", err)
		}

		// The buyer got their escrowed funds back and the offer is intact.
		if got := vault.BalanceOf(carol); !got.Eq(price(10)) {
			t.Errorf("buyer balance = %s, want 10", got.Dec())
		}
		if _, ok := m.OfferFor(1); !ok {
			t.Error("offer lost after rolled-back buy")
		}
		owner, _ := registry.OwnerOf(1)
		if owner != alice {
			t.Errorf("owner = %s, want %s", owner, alice)
		}
	})
}

func TestOfferDiesWithTransfer(t *testing.T) {
	m, registry, _ := newMarket(t, 1)

	if err := m.SetOffer(price(5), 1, alice); err != nil {
		t.Fatalf("set offer: %v", err)
	}
	// An off-market transfer voids the listing.
	if err := registry.Transfer(alice, bob, 1, alice); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, ok := m.OfferFor(1); ok {
		t.Error("offer survived direct transfer")
	}
	if got := m.ActiveOffers(); len(got) != 0 {
		t.Errorf("active offers = %v, want none", got)
	}
}

func TestVault(t *testing.T) {
	t.Run("DepositWithdraw", func(t *testing.T) {
		v := market.NewVault()
		v.Deposit(alice, price(10))
		if err := v.Withdraw(alice, price(4)); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if got := v.BalanceOf(alice); !got.Eq(price(6)) {
			t.Errorf("balance = %s, want 6", got.Dec())
		}
	})

	t.Run("Overdraw", func(t *testing.T) {
		v := market.NewVault()
		v.Deposit(alice, price(3))
		if err := v.Withdraw(alice, price(4)); !errors.Is(err, market.ErrInsufficientFunds) {
			t.Errorf("overdraw: %v, want ErrInsufficientFunds", err)
		}
		if got := v.BalanceOf(alice); !got.Eq(price(3)) {
			t.Errorf("balance = %s, want 3", got.Dec())
		}
	})

	t.Run("UnknownAccountIsZero", func(t *testing.T) {
		v := market.NewVault()
		if got := v.BalanceOf(bob); !got.IsZero() {
			t.Errorf("balance = %s, want 0", got.Dec())
		}
	})

	t.Run("BalanceNotAliased", func(t *testing.T) {
		v := market.NewVault()
		v.Deposit(alice, price(10))
		v.BalanceOf(alice).SetUint64(0)
		if got := v.BalanceOf(alice); !got.Eq(price(10)) {
			t.Errorf("balance = %s, want 10", got.Dec())
		}
	})
}
