package database

import "errors"

var (
	ErrNotFound     = errors.New("booking not found")
	ErrUserNotFound = errors.New("user not found")
	// ErrSlotTaken is surfaced when the partial unique index rejects a write.
	// It is the correctness backstop for the create/create race; the
	// application-level conflict scan is only the fast path.
	ErrSlotTaken = errors.New("slot is already taken")
)
