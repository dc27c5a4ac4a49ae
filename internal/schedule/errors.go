package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time, expected HH:MM")
	ErrInvalidDate       = errors.New("invalid date")
	ErrPastDate          = errors.New("date is in the past")
	ErrInvalidTimeOrder  = errors.New("end time must be after start time")
	ErrPastTime          = errors.New("start time has already passed today")
)

// ConflictError reports an occupied slot together with the colliding window,
// so callers can show the renter what is actually in the way.
type ConflictError struct {
	BookingID int64
	StartTime string
	EndTime   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot unavailable: overlaps existing booking %s-%s", e.StartTime, e.EndTime)
}
