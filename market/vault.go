package market

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/cryptomonkeys/go-monkeychain/ledger"
)

// Vault is the native-unit fund ledger standing in for the host payment
// primitive. Balances are 256-bit; amounts are copied on the way in and
// out so callers cannot alias internal state.
type Vault struct {
	balances map[ledger.Identity]*uint256.Int
}

// NewVault creates an empty fund ledger.
func NewVault() *Vault {
	return &Vault{balances: make(map[ledger.Identity]*uint256.Int)}
}

// Deposit credits who with amount.
func (v *Vault) Deposit(who ledger.Identity, amount *uint256.Int) {
	v.credit(who, amount)
}

// Withdraw debits who by amount, failing if the balance is too low.
func (v *Vault) Withdraw(who ledger.Identity, amount *uint256.Int) error {
	return v.debit(who, amount)
}

// BalanceOf returns a copy of who's balance.
func (v *Vault) BalanceOf(who ledger.Identity) *uint256.Int {
	if bal, ok := v.balances[who]; ok {
		return new(uint256.Int).Set(bal)
	}
	return uint256.NewInt(0)
}

// Balances returns a copy of the full balance table.
func (v *Vault) Balances() map[ledger.Identity]*uint256.Int {
	out := make(map[ledger.Identity]*uint256.Int, len(v.balances))
	for who, bal := range v.balances {
		out[who] = new(uint256.Int).Set(bal)
	}
	return out
}

func (v *Vault) credit(who ledger.Identity, amount *uint256.Int) {
	bal, ok := v.balances[who]
	if !ok {
		bal = uint256.NewInt(0)
		v.balances[who] = bal
	}
	bal.Add(bal, amount)
}

func (v *Vault) debit(who ledger.Identity, amount *uint256.Int) error {
	bal, ok := v.balances[who]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, who)
	}
	bal.Sub(bal, amount)
	if bal.IsZero() {
		delete(v.balances, who)
	}
	return nil
}
