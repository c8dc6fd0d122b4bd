package ledger

// accessTable tracks transfer permissions: per-asset single-use approvals
// and per-(owner, operator) blanket flags.
//
// Single-use approvals are consumed by any successful transfer of the
// asset, overwritten by a later approve call, and cleared whenever
// ownership changes by any path. Operator grants persist until revoked.
type accessTable struct {
	approved  map[uint64]Identity
	operators map[Identity]map[Identity]bool
}

func newAccessTable() accessTable {
	return accessTable{
		approved:  make(map[uint64]Identity),
		operators: make(map[Identity]map[Identity]bool),
	}
}

func (t *accessTable) approve(id uint64, spender Identity) {
	if spender == Burn || spender == "" {
		delete(t.approved, id)
		return
	}
	t.approved[id] = spender
}

func (t *accessTable) clearApproval(id uint64) {
	delete(t.approved, id)
}

func (t *accessTable) approvedFor(id uint64) (Identity, bool) {
	spender, ok := t.approved[id]
	return spender, ok
}

func (t *accessTable) setOperator(owner, operator Identity, enabled bool) {
	if !enabled {
		if m, ok := t.operators[owner]; ok {
			delete(m, operator)
			if len(m) == 0 {
				delete(t.operators, owner)
			}
		}
		return
	}
	m, ok := t.operators[owner]
	if !ok {
		m = make(map[Identity]bool)
		t.operators[owner] = m
	}
	m[operator] = true
}

func (t *accessTable) isOperator(owner, operator Identity) bool {
	return t.operators[owner][operator]
}

// authorized reports whether caller may move the asset: caller is the
// owner, holds a live single-use approval for this exact asset, or is a
// registered operator for the owner.
func (t *accessTable) authorized(caller, owner Identity, id uint64) bool {
	if caller == owner {
		return true
	}
	if spender, ok := t.approved[id]; ok && spender == caller {
		return true
	}
	return t.isOperator(owner, caller)
}
