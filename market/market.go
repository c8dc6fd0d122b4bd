// Package market implements the fixed-price offer book and its atomic
// settlement against the ownership registry and the vault. An offer is a
// quoted price, not an escrowed payment: funds move only at purchase, and
// only after the offer is voided and ownership has changed hands.
package market

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/cryptomonkeys/go-monkeychain/ledger"
)

// Offer is an active fixed-price listing.
type Offer struct {
	TokenID uint64          `json:"tokenId"`
	Seller  ledger.Identity `json:"seller"`
	Price   *uint256.Int    `json:"price"`
}

// Market is the offer book. It acts on the registry under its own
// identity, which sellers must have granted operator status before
// listing.
type Market struct {
	id       ledger.Identity
	registry *ledger.Registry
	vault    *Vault
	offers   map[uint64]Offer
	settling bool
}

// New creates a market bound to a registry and vault. The market
// registers a transfer hook so offers die with any ownership change,
// marketplace-driven or not.
func New(id ledger.Identity, registry *ledger.Registry, vault *Vault) *Market {
	m := &Market{
		id:       id,
		registry: registry,
		vault:    vault,
		offers:   make(map[uint64]Offer),
	}
	registry.OnTransfer(m.assetTransferred)
	return m
}

// Identity returns the identity the market uses on the registry.
func (m *Market) Identity() ledger.Identity {
	return m.id
}

// Vault returns the fund ledger backing purchases.
func (m *Market) Vault() *Vault {
	return m.vault
}

// SetOffer lists id at price on behalf of seller, overwriting any prior
// listing. The seller must currently own id and must have granted the
// market operator status in the registry.
func (m *Market) SetOffer(price *uint256.Int, id uint64, seller ledger.Identity) error {
	owner, err := m.registry.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != seller {
		return fmt.Errorf("%w: %s does not hold %d", ledger.ErrNotOwner, seller, id)
	}
	if !m.registry.IsOperator(seller, m.id) {
		return fmt.Errorf("%w: market lacks operator grant from %s", ledger.ErrUnauthorized, seller)
	}

	m.offers[id] = Offer{
		TokenID: id,
		Seller:  seller,
		Price:   new(uint256.Int).Set(price),
	}
	return nil
}

// RemoveOffer delists id. Only the recorded seller may remove an offer.
func (m *Market) RemoveOffer(id uint64, caller ledger.Identity) error {
	offer, ok := m.offers[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNoActiveOffer, id)
	}
	if offer.Seller != caller {
		return fmt.Errorf("%w: offer for %d belongs to %s", ledger.ErrUnauthorized, id, offer.Seller)
	}
	delete(m.offers, id)
	return nil
}

// Buy settles the offer for id: the asset moves from seller to buyer and
// the exact listed price moves from buyer to seller. Either both happen
// or neither does; the offer is voided before funds are released.
func (m *Market) Buy(id uint64, payment *uint256.Int, buyer ledger.Identity) error {
	if m.settling {
		return ErrReentrantCall
	}
	offer, ok := m.offers[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNoActiveOffer, id)
	}
	if payment == nil || !payment.Eq(offer.Price) {
		return fmt.Errorf("%w: want %s", ErrIncorrectPayment, offer.Price.Dec())
	}
	m.settling = true
	defer func() { m.settling = false }()

	// Hold the payment, void the offer, and commit the ownership change
	// before the seller sees any value. Each failure path restores the
	// exact prior state.
	if err := m.vault.debit(buyer, offer.Price); err != nil {
		return err
	}
	delete(m.offers, id)
	if err := m.registry.Transfer(offer.Seller, buyer, id, m.id); err != nil {
		m.offers[id] = offer
		m.vault.credit(buyer, offer.Price)
		return err
	}
	m.vault.credit(offer.Seller, offer.Price)
	return nil
}

// OfferFor returns the active offer for id, if any. The returned price is
// a copy.
func (m *Market) OfferFor(id uint64) (Offer, bool) {
	offer, ok := m.offers[id]
	if !ok {
		return Offer{}, false
	}
	offer.Price = new(uint256.Int).Set(offer.Price)
	return offer, true
}

// ActiveOffers returns the listed asset ids in ascending order.
func (m *Market) ActiveOffers() []uint64 {
	out := make([]uint64, 0, len(m.offers))
	for id := range m.offers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Offers returns a canonical copy of the offer book, sorted by token id.
func (m *Market) Offers() []Offer {
	out := make([]Offer, 0, len(m.offers))
	for _, offer := range m.offers {
		offer.Price = new(uint256.Int).Set(offer.Price)
		out = append(out, offer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// assetTransferred voids the offer for any asset that changed hands.
func (m *Market) assetTransferred(id uint64, _, _ ledger.Identity) {
	delete(m.offers, id)
}
