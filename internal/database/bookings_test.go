package database

import (
	"context"
	"io"
	"testing"
	"time"

	"fieldbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testBooking(day string, start, end string) *models.Booking {
	date, _ := time.Parse(models.DateLayout, day)
	return &models.Booking{
		Reference:     uuid.NewString(),
		UserID:        1,
		RenterName:    "Amr Khaled Mostafa",
		RenterPhone:   "+201001234567",
		DateOfRent:    date,
		StartTime:     start,
		EndTime:       end,
		DurationHours: 1.5,
		PricePerHour:  70,
		TotalPrice:    105,
		Status:        models.StatusPending,
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := testBooking("2030-08-15", "09:00", "10:30")
	require.NoError(t, db.CreateBooking(ctx, b))
	assert.NotZero(t, b.ID)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)
	assert.Equal(t, "09:00", got.StartTime)
	assert.Equal(t, "10:30", got.EndTime)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "2030-08-15", got.DateOfRent.Format(models.DateLayout))
	// dateOfRent is stored as a bare date: no time-of-day component leaks in.
	assert.Equal(t, 0, got.DateOfRent.Hour())
}

func TestGetBooking_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetBooking(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueActiveSlotIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := testBooking("2030-08-15", "09:00", "10:30")
	require.NoError(t, db.CreateBooking(ctx, first))

	t.Run("SecondActiveSameStartRejected", func(t *testing.T) {
		dup := testBooking("2030-08-15", "09:00", "11:00")
		err := db.CreateBooking(ctx, dup)
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("CancelledRowsLeaveTheIndex", func(t *testing.T) {
		require.NoError(t, db.UpdateBookingStatus(ctx, first.ID, models.StatusCancelled))

		replacement := testBooking("2030-08-15", "09:00", "10:00")
		assert.NoError(t, db.CreateBooking(ctx, replacement))
	})

	t.Run("SameStartOtherDayAllowed", func(t *testing.T) {
		other := testBooking("2030-08-16", "09:00", "10:30")
		assert.NoError(t, db.CreateBooking(ctx, other))
	})
}

func TestGetBookingsForDay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	kept := testBooking("2030-08-15", "09:00", "10:30")
	require.NoError(t, db.CreateBooking(ctx, kept))
	later := testBooking("2030-08-15", "12:00", "13:00")
	require.NoError(t, db.CreateBooking(ctx, later))
	cancelled := testBooking("2030-08-15", "15:00", "16:00")
	cancelled.Status = models.StatusCancelled
	require.NoError(t, db.CreateBooking(ctx, cancelled))
	otherDay := testBooking("2030-08-16", "09:00", "10:30")
	require.NoError(t, db.CreateBooking(ctx, otherDay))

	dayStart, _ := time.Parse(models.DateLayout, "2030-08-15")
	dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)

	t.Run("ExcludesCancelledAndOtherDays", func(t *testing.T) {
		got, err := db.GetBookingsForDay(ctx, dayStart, dayEnd, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "09:00", got[0].StartTime)
		assert.Equal(t, "12:00", got[1].StartTime)
	})

	t.Run("ExcludeID", func(t *testing.T) {
		got, err := db.GetBookingsForDay(ctx, dayStart, dayEnd, kept.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, later.ID, got[0].ID)
	})
}

func TestUpdateBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b := testBooking("2030-08-15", "09:00", "10:30")
	require.NoError(t, db.CreateBooking(ctx, b))

	b.Comment = "bring our own ball"
	b.StartTime = "10:00"
	b.EndTime = "11:30"
	require.NoError(t, db.UpdateBooking(ctx, b))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bring our own ball", got.Comment)
	assert.Equal(t, "10:00", got.StartTime)

	missing := testBooking("2030-08-15", "09:00", "10:30")
	missing.ID = 424242
	assert.ErrorIs(t, db.UpdateBooking(ctx, missing), ErrNotFound)
}

func TestListBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := testBooking("2030-08-15", "09:00", "10:30")
	require.NoError(t, db.CreateBooking(ctx, a))
	b := testBooking("2030-08-20", "09:00", "10:30")
	b.Status = models.StatusConfirmed
	require.NoError(t, db.CreateBooking(ctx, b))

	t.Run("ByStatus", func(t *testing.T) {
		got, err := db.ListBookings(ctx, models.BookingFilter{Status: models.StatusConfirmed})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
	})

	t.Run("ByDateRange", func(t *testing.T) {
		from, _ := time.Parse(models.DateLayout, "2030-08-14")
		to, _ := time.Parse(models.DateLayout, "2030-08-16")
		got, err := db.ListBookings(ctx, models.BookingFilter{From: from, To: to})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)
	})

	t.Run("NoFilter", func(t *testing.T) {
		got, err := db.ListBookings(ctx, models.BookingFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestUserPoints(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &models.User{ID: 7, Name: "Renter Seven"}
	require.NoError(t, db.EnsureUser(ctx, user))

	require.NoError(t, db.AddUserPoints(ctx, 7, 2))
	require.NoError(t, db.AddUserPoints(ctx, 7, 1))
	require.NoError(t, db.AddUserPoints(ctx, 7, -2))

	got, err := db.GetUserByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Points)

	assert.ErrorIs(t, db.AddUserPoints(ctx, 9999, 1), ErrUserNotFound)
}

func TestEnsureUser_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnsureUser(ctx, &models.User{ID: 3, Name: "Old Name"}))
	require.NoError(t, db.AddUserPoints(ctx, 3, 5))
	require.NoError(t, db.EnsureUser(ctx, &models.User{ID: 3, Name: "New Name", Phone: "+123"}))

	got, err := db.GetUserByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "+123", got.Phone)
	// ensure never resets the counter
	assert.Equal(t, int64(5), got.Points)
}

func TestEnsureUser_KeepsTelegramBinding(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnsureUser(ctx, &models.User{ID: 4, Name: "Анна", TelegramChatID: 777}))
	// апсерт без chat_id не должен затирать привязку
	require.NoError(t, db.EnsureUser(ctx, &models.User{ID: 4, Name: "Анна"}))

	got, err := db.GetUserByID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(777), got.TelegramChatID)
}
