package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldbook/internal/models"

	"github.com/mattn/go-sqlite3"
)

const bookingColumns = `id, reference, user_id, renter_name, renter_phone, renter_email,
	date(date_of_rent), start_time, end_time, duration_hours, price_per_hour,
	total_price, status, comment, created_at, updated_at`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				reference, user_id, renter_name, renter_phone, renter_email,
				date_of_rent, start_time, end_time, duration_hours,
				price_per_hour, total_price, status, comment, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.Reference,
		booking.UserID,
		booking.RenterName,
		booking.RenterPhone,
		booking.RenterEmail,
		booking.DateOfRent.Format(models.DateLayout),
		booking.StartTime,
		booking.EndTime,
		booking.DurationHours,
		booking.PricePerHour,
		booking.TotalPrice,
		booking.Status,
		booking.Comment,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrSlotTaken,
				booking.DateOfRent.Format(models.DateLayout), booking.StartTime)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings SET
				renter_name = ?, renter_phone = ?, renter_email = ?,
				date_of_rent = ?, start_time = ?, end_time = ?,
				duration_hours = ?, price_per_hour = ?, total_price = ?,
				status = ?, comment = ?, updated_at = ?
			WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.RenterName,
		booking.RenterPhone,
		booking.RenterEmail,
		booking.DateOfRent.Format(models.DateLayout),
		booking.StartTime,
		booking.EndTime,
		booking.DurationHours,
		booking.PricePerHour,
		booking.TotalPrice,
		booking.Status,
		booking.Comment,
		now,
		booking.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrSlotTaken,
				booking.DateOfRent.Format(models.DateLayout), booking.StartTime)
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, booking.ID)
	}
	booking.UpdatedAt = now
	return nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return nil
}

// GetBookingsForDay loads non-cancelled bookings within [dayStart, dayEnd],
// excluding excludeID when non-zero. Rows come back in start_time order; the
// conflict contract only needs some deterministic order.
func (db *DB) GetBookingsForDay(ctx context.Context, dayStart, dayEnd time.Time, excludeID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings
              WHERE date(date_of_rent) >= date(?) AND date(date_of_rent) <= date(?)
                AND status != ? AND id != ?
              ORDER BY start_time ASC`
	rows, err := db.QueryContext(ctx, query,
		dayStart.Format(models.DateLayout), dayEnd.Format(models.DateLayout),
		models.StatusCancelled, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings for day: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "date(date_of_rent) >= date(?)")
		args = append(args, filter.From.Format(models.DateLayout))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "date(date_of_rent) <= date(?)")
		args = append(args, filter.To.Format(models.DateLayout))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY date_of_rent ASC, start_time ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings WHERE user_id = ? ORDER BY date_of_rent DESC, start_time DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	var email, comment sql.NullString
	err := row.Scan(
		&b.ID, &b.Reference, &b.UserID, &b.RenterName, &b.RenterPhone, &email,
		&dateStr, &b.StartTime, &b.EndTime, &b.DurationHours, &b.PricePerHour,
		&b.TotalPrice, &b.Status, &comment, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.RenterEmail = email.String
	b.Comment = comment.String

	b.DateOfRent, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
