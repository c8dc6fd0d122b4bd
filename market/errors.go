package market

import "errors"

var (
	ErrNoActiveOffer     = errors.New("market: no active offer for asset")
	ErrIncorrectPayment  = errors.New("market: payment does not match listed price")
	ErrInsufficientFunds = errors.New("market: vault balance too low")
	ErrReentrantCall     = errors.New("market: settlement already in progress")
)
