package ledger

// Identity names an account on the ledger. Identities are opaque strings;
// the host environment decides what they look like (addresses, usernames).
type Identity string

// Burn is the null identity. It owns the sentinel asset and can never be
// the source or target of a transfer.
const Burn Identity = "0x0"

// Asset is a single monkey record. Records are created by founder minting
// or breeding and persist forever; only Owner changes after creation.
type Asset struct {
	ID         uint64   `json:"id"`
	Genes      uint64   `json:"genes"`
	Generation uint32   `json:"generation"`
	Owner      Identity `json:"owner"`

	// Parents are zero for founder stock and the sentinel.
	Parents [2]uint64 `json:"parents"`
}

// Sentinel reports whether the asset is the reserved burnt record.
func (a Asset) Sentinel() bool {
	return a.ID == 0
}
