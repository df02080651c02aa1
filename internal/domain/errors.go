package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNetworkFailure   = errors.New("venue network failure")
	ErrVenueRejected    = errors.New("venue rejected order")
	ErrSizeBelowMinimum = errors.New("order size below venue minimum")
	ErrAlreadyInFlight  = errors.New("execution already in flight for symbol")
	ErrStaleQuote       = errors.New("quote exceeds staleness bound")
	ErrLoopDisabled     = errors.New("auto-execution loop disabled")
)
