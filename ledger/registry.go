// Package ledger implements the authoritative ownership registry for the
// monkey game: the asset table, the dual-indexed owner lists, the approval
// tables, and the mint/breed/transfer state machine. Every operation takes
// an explicit caller Identity; there is no ambient caller context.
package ledger

import (
	"fmt"

	"github.com/cryptomonkeys/go-monkeychain/genetics"
)

// DefaultGen0Limit caps founder minting. The sentinel record does not
// count toward the cap.
const DefaultGen0Limit = 12

// TransferHook observes committed ownership changes. Hooks run after the
// registry state is fully updated.
type TransferHook func(id uint64, from, to Identity)

// RegistryConfig configures a new Registry.
type RegistryConfig struct {
	// Owner is the registry's designated owner, the only identity allowed
	// to mint founder stock.
	Owner Identity

	// Gen0Limit caps founder mints. Zero means DefaultGen0Limit.
	Gen0Limit uint32

	// Entropy is the auxiliary word fed into gene mixing. Fixed at
	// construction so breeding is reproducible for a given ledger.
	Entropy uint64
}

// Registry owns all asset records and their ownership index. It starts
// with exactly one record: the burnt sentinel at id 0, held by Burn.
type Registry struct {
	owner      Identity
	gen0Limit  uint32
	gen0Minted uint32
	entropy    uint64

	// assets is dense: assets[i].ID == i, ids are never reused.
	assets []Asset
	index  *OwnerIndex
	access accessTable

	hooks    []TransferHook
	sequence uint64
}

// NewRegistry creates a registry holding only the sentinel record.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Gen0Limit == 0 {
		cfg.Gen0Limit = DefaultGen0Limit
	}
	r := &Registry{
		owner:     cfg.Owner,
		gen0Limit: cfg.Gen0Limit,
		entropy:   cfg.Entropy,
		index:     NewOwnerIndex(),
		access:    newAccessTable(),
	}
	r.assets = append(r.assets, Asset{ID: 0, Owner: Burn})
	r.index.Add(Burn, 0)
	return r
}

// RegistryOwner returns the identity allowed to mint founder stock.
func (r *Registry) RegistryOwner() Identity {
	return r.owner
}

// OnTransfer registers a hook invoked after every committed transfer.
func (r *Registry) OnTransfer(hook TransferHook) {
	r.hooks = append(r.hooks, hook)
}

// MintFounder creates a generation-0 asset owned by the caller. Only the
// registry owner may mint, and only until the gen0 cap is reached.
func (r *Registry) MintFounder(genes uint64, caller Identity) (uint64, error) {
	if caller != r.owner {
		return 0, fmt.Errorf("%w: only the registry owner mints gen 0", ErrUnauthorized)
	}
	if r.gen0Minted >= r.gen0Limit {
		return 0, ErrGen0LimitReached
	}

	id := r.allocate(Asset{
		Genes:      genes,
		Generation: 0,
		Owner:      caller,
	})
	r.gen0Minted++
	r.sequence++
	return id, nil
}

// Breed derives a child from two parents and assigns it to the caller.
// The caller must be owner, approved, or operator for each parent
// independently; parents stay owned and immediately breedable again.
func (r *Registry) Breed(parentA, parentB uint64, caller Identity) (uint64, error) {
	if parentA == parentB {
		return 0, ErrSelfBreed
	}
	a, err := r.DetailsOf(parentA)
	if err != nil {
		return 0, err
	}
	b, err := r.DetailsOf(parentB)
	if err != nil {
		return 0, err
	}
	if a.Sentinel() || b.Sentinel() {
		return 0, ErrSentinelAsset
	}
	if !r.access.authorized(caller, a.Owner, a.ID) {
		return 0, fmt.Errorf("%w: parent %d", ErrUnauthorized, a.ID)
	}
	if !r.access.authorized(caller, b.Owner, b.ID) {
		return 0, fmt.Errorf("%w: parent %d", ErrUnauthorized, b.ID)
	}

	id := r.allocate(Asset{
		Genes:      genetics.Mix(a.Genes, b.Genes, r.entropy),
		Generation: genetics.ChildGeneration(a.Generation, b.Generation),
		Owner:      caller,
		Parents:    [2]uint64{parentA, parentB},
	})
	r.sequence++
	return id, nil
}

// Transfer moves id from one identity to another. The caller must be the
// source, hold a single-use approval for id, or be an operator for the
// source. Any single-use approval is consumed on success.
func (r *Registry) Transfer(from, to Identity, id uint64, caller Identity) error {
	asset, err := r.DetailsOf(id)
	if err != nil {
		return err
	}
	if asset.Sentinel() {
		return ErrSentinelAsset
	}
	if to == Burn || to == "" {
		return ErrZeroIdentity
	}
	if asset.Owner != from {
		return fmt.Errorf("%w: %s does not hold %d", ErrNotOwner, from, id)
	}
	if !r.access.authorized(caller, from, id) {
		return fmt.Errorf("%w: transfer of %d", ErrUnauthorized, id)
	}

	if err := r.index.Move(from, to, id); err != nil {
		return err
	}
	r.assets[id].Owner = to
	r.access.clearApproval(id)
	r.sequence++

	for _, hook := range r.hooks {
		hook(id, from, to)
	}
	return nil
}

// Approve grants spender a single-use transfer approval for id. The caller
// must own id or be an operator for its owner. Approving the burn identity
// clears any existing approval.
func (r *Registry) Approve(id uint64, spender Identity, caller Identity) error {
	asset, err := r.DetailsOf(id)
	if err != nil {
		return err
	}
	if asset.Sentinel() {
		return ErrSentinelAsset
	}
	if caller != asset.Owner && !r.access.isOperator(asset.Owner, caller) {
		return fmt.Errorf("%w: approve of %d", ErrUnauthorized, id)
	}
	r.access.approve(id, spender)
	r.sequence++
	return nil
}

// SetOperator grants or revokes operator status over all of owner's
// assets. Only owner may change its own operator set.
func (r *Registry) SetOperator(owner, operator Identity, enabled bool, caller Identity) error {
	if caller != owner {
		return fmt.Errorf("%w: operator grant for %s", ErrUnauthorized, owner)
	}
	if operator == Burn || operator == "" {
		return ErrZeroIdentity
	}
	r.access.setOperator(owner, operator, enabled)
	r.sequence++
	return nil
}

// OwnerOf returns the current holder of id.
func (r *Registry) OwnerOf(id uint64) (Identity, error) {
	asset, err := r.DetailsOf(id)
	if err != nil {
		return "", err
	}
	return asset.Owner, nil
}

// DetailsOf returns the full asset record for id.
func (r *Registry) DetailsOf(id uint64) (Asset, error) {
	if id >= uint64(len(r.assets)) {
		return Asset{}, fmt.Errorf("%w: id %d", ErrAssetNotFound, id)
	}
	return r.assets[id], nil
}

// IDsOwnedBy enumerates the assets held by owner.
func (r *Registry) IDsOwnedBy(owner Identity) []uint64 {
	return r.index.ListOf(owner)
}

// BalanceOf returns the number of assets held by owner.
func (r *Registry) BalanceOf(owner Identity) int {
	return r.index.Count(owner)
}

// PositionOf returns id's index in owner's enumeration list.
func (r *Registry) PositionOf(owner Identity, id uint64) (int, error) {
	return r.index.PositionOf(owner, id)
}

// TotalSupply counts every record ever created, sentinel included.
func (r *Registry) TotalSupply() uint64 {
	return uint64(len(r.assets))
}

// Gen0Minted returns how many founder mints have been committed.
func (r *Registry) Gen0Minted() uint32 {
	return r.gen0Minted
}

// IsOperator reports whether operator holds a blanket grant from owner.
func (r *Registry) IsOperator(owner, operator Identity) bool {
	return r.access.isOperator(owner, operator)
}

// ApprovedFor returns the live single-use approval for id, if any.
func (r *Registry) ApprovedFor(id uint64) (Identity, bool) {
	return r.access.approvedFor(id)
}

// Sequence returns the number of committed mutations.
func (r *Registry) Sequence() uint64 {
	return r.sequence
}

// allocate appends the asset under the next sequential id and indexes it.
func (r *Registry) allocate(a Asset) uint64 {
	id := uint64(len(r.assets))
	a.ID = id
	r.assets = append(r.assets, a)
	r.index.Add(a.Owner, id)
	return id
}
