package ledger

import "errors"

var (
	// Authorization errors
	ErrUnauthorized = errors.New("ledger: caller not authorized")
	ErrNotOwner     = errors.New("ledger: transfer source does not own asset")

	// Lifecycle errors
	ErrGen0LimitReached = errors.New("ledger: maximum amount of gen 0 monkeys reached")
	ErrAssetNotFound    = errors.New("ledger: asset not found")
	ErrSentinelAsset    = errors.New("ledger: asset 0 is the burnt sentinel")
	ErrSelfBreed        = errors.New("ledger: parents must be distinct assets")
	ErrZeroIdentity     = errors.New("ledger: burn identity not allowed here")

	// Index errors
	ErrNotIndexed = errors.New("ledger: asset not indexed under owner")
)
