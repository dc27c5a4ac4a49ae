package service

import "errors"

var (
	ErrForbidden = errors.New("operation not permitted for this user")
	// ErrAlreadyCancelled marks a repeated cancellation. Callers treat it as
	// an idempotent success, not a failure.
	ErrAlreadyCancelled  = errors.New("booking is already cancelled")
	ErrInvalidInput      = errors.New("invalid booking input")
	ErrDateTooFar        = errors.New("date is too far in the future")
	ErrInvalidTransition = errors.New("status transition is not allowed")
)
