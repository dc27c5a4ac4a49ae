// Package domain declares the interfaces the booking core consumes. The
// engine never talks to SQLite, Redis or Telegram directly; it sees only
// these contracts.
package domain

import (
	"context"
	"time"

	"fieldbook/internal/models"
)

type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	// GetBookingsForDay returns non-cancelled bookings whose dateOfRent falls
	// within [dayStart, dayEnd], optionally excluding one id (used when
	// re-checking conflicts during an update).
	GetBookingsForDay(ctx context.Context, dayStart, dayEnd time.Time, excludeID int64) ([]*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	EnsureUser(ctx context.Context, user *models.User) error
	AddUserPoints(ctx context.Context, userID, delta int64) error
}

// Notifier delivers outbound messages. Failures are never fatal to a booking
// operation; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, subject, body string) error
	NotifyAdmins(ctx context.Context, subject, body string) error
}

// Clock abstracts "now" so tests can pin the current day and minute.
type Clock interface {
	Now() time.Time
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncWorker accepts background synchronization tasks (spreadsheet export).
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

// ScheduleCache is a read-through cache for per-day schedules. It serves the
// public schedule endpoint only; conflict checks always read the store.
type ScheduleCache interface {
	GetDay(ctx context.Context, date string) ([]*models.Booking, error)
	SetDay(ctx context.Context, date string, bookings []*models.Booking) error
	InvalidateDay(ctx context.Context, date string) error
}

type BookingService interface {
	Create(ctx context.Context, input CreateBookingInput, requesterID int64) (*models.Booking, error)
	Update(ctx context.Context, id int64, patch UpdateBookingPatch, actorID int64, privileged bool) (*models.Booking, error)
	Delete(ctx context.Context, id, actorID int64, privileged bool) (*models.Booking, error)
	AdminCancel(ctx context.Context, id int64) (*models.Booking, error)
	AdminChangeStatus(ctx context.Context, id int64, newStatus string) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetDaySchedule(ctx context.Context, date string) ([]*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, from, to time.Time) (map[string][]*models.Booking, error)
}

// CreateBookingInput carries a create request. PricePerHour zero means
// "use the configured default rate".
type CreateBookingInput struct {
	RenterName   string  `json:"renter_name"`
	RenterPhone  string  `json:"renter_phone"`
	RenterEmail  string  `json:"renter_email"`
	DateOfRent   string  `json:"date_of_rent"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	PricePerHour float64 `json:"price_per_hour"`
	Comment      string  `json:"comment"`
}

// UpdateBookingPatch is a partial update: nil fields are left untouched.
type UpdateBookingPatch struct {
	RenterName   *string  `json:"renter_name"`
	RenterPhone  *string  `json:"renter_phone"`
	RenterEmail  *string  `json:"renter_email"`
	Comment      *string  `json:"comment"`
	DateOfRent   *string  `json:"date_of_rent"`
	StartTime    *string  `json:"start_time"`
	EndTime      *string  `json:"end_time"`
	PricePerHour *float64 `json:"price_per_hour"`
	Status       *string  `json:"status"`
}
