package ledger

import "sort"

// Snapshot is a canonical, self-contained copy of the registry state,
// suitable for hashing or inspection. Assets appear in id order; approval
// and operator entries are sorted so equal states produce equal snapshots.
type Snapshot struct {
	Assets     []Asset         `json:"assets"`
	Gen0Minted uint32          `json:"gen0Minted"`
	Approvals  []ApprovalEntry `json:"approvals,omitempty"`
	Operators  []OperatorEntry `json:"operators,omitempty"`
	Sequence   uint64          `json:"sequence"`
}

// ApprovalEntry records a live single-use approval.
type ApprovalEntry struct {
	TokenID uint64   `json:"tokenId"`
	Spender Identity `json:"spender"`
}

// OperatorEntry records a live operator grant.
type OperatorEntry struct {
	Owner    Identity `json:"owner"`
	Operator Identity `json:"operator"`
}

// Snapshot captures the current registry state.
func (r *Registry) Snapshot() *Snapshot {
	snap := &Snapshot{
		Assets:     make([]Asset, len(r.assets)),
		Gen0Minted: r.gen0Minted,
		Sequence:   r.sequence,
	}
	copy(snap.Assets, r.assets)

	for id, spender := range r.access.approved {
		snap.Approvals = append(snap.Approvals, ApprovalEntry{TokenID: id, Spender: spender})
	}
	sort.Slice(snap.Approvals, func(i, j int) bool {
		return snap.Approvals[i].TokenID < snap.Approvals[j].TokenID
	})

	for owner, ops := range r.access.operators {
		for op, enabled := range ops {
			if enabled {
				snap.Operators = append(snap.Operators, OperatorEntry{Owner: owner, Operator: op})
			}
		}
	}
	sort.Slice(snap.Operators, func(i, j int) bool {
		a, b := snap.Operators[i], snap.Operators[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Operator < b.Operator
	})

	return snap
}
