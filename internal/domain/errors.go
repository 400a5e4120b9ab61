package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrRateLimited             = errors.New("rate limited")
	ErrLockHeld                = errors.New("lock already held")
	ErrInvalidOrder            = errors.New("invalid order parameters")
	ErrInsufficientBuyingPower = errors.New("insufficient options buying power")
	ErrQuoteUnavailable        = errors.New("quote unavailable")
	ErrPartialLot              = errors.New("partial lot")
)
