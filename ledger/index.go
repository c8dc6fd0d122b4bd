package ledger

import "fmt"

// OwnerIndex maintains the bidirectional mapping between asset ids and
// (owner, position in the owner's list). Removal swaps the target with the
// last element of the list before truncating, so every operation is O(1)
// and the lists never hold gaps.
//
// Invariant, after every mutation: owned[owner][position[id]] == id for
// every indexed id.
type OwnerIndex struct {
	owned    map[Identity][]uint64
	position map[uint64]int
}

// NewOwnerIndex creates an empty index.
func NewOwnerIndex() *OwnerIndex {
	return &OwnerIndex{
		owned:    make(map[Identity][]uint64),
		position: make(map[uint64]int),
	}
}

// Add appends id to owner's list and records its position.
func (x *OwnerIndex) Add(owner Identity, id uint64) {
	list := x.owned[owner]
	x.position[id] = len(list)
	x.owned[owner] = append(list, id)
}

// Remove unlinks id from owner's list. The removed slot is filled by the
// list's last element and the moved element's position entry is updated.
func (x *OwnerIndex) Remove(owner Identity, id uint64) error {
	pos, err := x.PositionOf(owner, id)
	if err != nil {
		return err
	}

	list := x.owned[owner]
	last := len(list) - 1
	if pos != last {
		moved := list[last]
		list[pos] = moved
		x.position[moved] = pos
	}
	list = list[:last]
	if len(list) == 0 {
		delete(x.owned, owner)
	} else {
		x.owned[owner] = list
	}
	delete(x.position, id)
	return nil
}

// Move reindexes id from one owner to another.
func (x *OwnerIndex) Move(from, to Identity, id uint64) error {
	if err := x.Remove(from, id); err != nil {
		return err
	}
	x.Add(to, id)
	return nil
}

// ListOf returns a copy of owner's asset ids. Order is insertion order
// modulo removal swaps; it is stable but not sorted.
func (x *OwnerIndex) ListOf(owner Identity) []uint64 {
	list := x.owned[owner]
	out := make([]uint64, len(list))
	copy(out, list)
	return out
}

// PositionOf returns id's index in owner's list, or ErrNotIndexed if id is
// not currently held by owner.
func (x *OwnerIndex) PositionOf(owner Identity, id uint64) (int, error) {
	pos, ok := x.position[id]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrNotIndexed, id)
	}
	list := x.owned[owner]
	if pos >= len(list) || list[pos] != id {
		return 0, fmt.Errorf("%w: id %d under %s", ErrNotIndexed, id, owner)
	}
	return pos, nil
}

// Count returns how many assets owner holds.
func (x *OwnerIndex) Count(owner Identity) int {
	return len(x.owned[owner])
}

// Owners returns every identity that currently holds at least one asset.
func (x *OwnerIndex) Owners() []Identity {
	out := make([]Identity, 0, len(x.owned))
	for owner := range x.owned {
		out = append(out, owner)
	}
	return out
}
