package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidOpportunity = errors.New("invalid opportunity")
	ErrQueueFull          = errors.New("opportunity queue full")
	ErrExecutionFailed    = errors.New("execution failed")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrMissingCredential  = errors.New("missing required credential")
	ErrMissingDestination = errors.New("missing withdrawal destination")
	ErrLockHeld           = errors.New("lock already held")
	ErrContextDone        = errors.New("context cancelled")
)
