package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
	"fieldbook/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService runs the booking pipeline: validation, conflict detection,
// pricing, the status state machine and its points side effects.
type BookingService struct {
	repo           domain.Repository
	cache          domain.ScheduleCache
	notifier       domain.Notifier
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	clock          domain.Clock
	loc            *time.Location
	defaultRate    float64
	maxAdvanceDays int
	logger         zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	cache domain.ScheduleCache,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	clock domain.Clock,
	loc *time.Location,
	defaultRate float64,
	maxAdvanceDays int,
	logger *zerolog.Logger,
) *BookingService {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	if defaultRate <= 0 {
		defaultRate = models.DefaultPricePerHour
	}
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.MaxBookingAdvanceDays
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "booking-service").Logger()
	}
	return &BookingService{
		repo:           repo,
		cache:          cache,
		notifier:       notifier,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		clock:          clock,
		loc:            loc,
		defaultRate:    defaultRate,
		maxAdvanceDays: maxAdvanceDays,
		logger:         log,
	}
}

func (s *BookingService) Create(ctx context.Context, input domain.CreateBookingInput, requesterID int64) (*models.Booking, error) {
	if err := validateContact(input.RenterName, input.RenterPhone, input.RenterEmail, input.Comment); err != nil {
		return nil, err
	}

	rate := input.PricePerHour
	if rate == 0 {
		rate = s.defaultRate
	}
	if rate < 0 {
		return nil, fmt.Errorf("%w: negative price per hour", ErrInvalidInput)
	}

	dayStart, dayEnd, err := schedule.ResolveDayBounds(input.DateOfRent, s.loc)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := schedule.ValidateWindow(now, dayStart, input.StartTime, input.EndTime); err != nil {
		return nil, err
	}
	if dayStart.After(now.AddDate(0, 0, s.maxAdvanceDays)) {
		return nil, fmt.Errorf("%w: %s", ErrDateTooFar, input.DateOfRent)
	}

	startMin, _ := schedule.ToMinutes(input.StartTime)
	endMin, _ := schedule.ToMinutes(input.EndTime)

	if err := s.checkSlotFree(ctx, dayStart, dayEnd, startMin, endMin, 0); err != nil {
		return nil, err
	}

	duration := schedule.DurationHours(startMin, endMin)
	booking := &models.Booking{
		Reference:     uuid.NewString(),
		UserID:        requesterID,
		RenterName:    strings.TrimSpace(input.RenterName),
		RenterPhone:   strings.TrimSpace(input.RenterPhone),
		RenterEmail:   strings.TrimSpace(input.RenterEmail),
		DateOfRent:    dayStart,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		DurationHours: duration,
		PricePerHour:  rate,
		TotalPrice:    schedule.Price(duration, rate),
		Status:        models.StatusPending,
		Comment:       input.Comment,
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			// гонка: индекс отклонил запись, показываем занявшего слот
			metrics.IncSlotConflict()
			return nil, s.describeConflict(ctx, dayStart, dayEnd, startMin, endMin)
		}
		return nil, err
	}
	metrics.IncBookingCreated()

	s.registerRenter(ctx, booking)
	s.awardPoints(ctx, booking, schedule.Points(duration))
	s.invalidateDay(ctx, booking.DateOfRent)
	s.publishEvent(events.EventBookingCreated, booking, schedule.Points(duration))
	s.enqueueSync(ctx, booking)
	s.notify(ctx, booking.UserID, "Бронирование создано",
		fmt.Sprintf("Поле забронировано на %s с %s до %s, сумма %.2f",
			booking.DateOfRent.Format(models.DateLayout), booking.StartTime, booking.EndTime, booking.TotalPrice))

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("date", booking.DateOfRent.Format(models.DateLayout)).
		Str("window", booking.StartTime+"-"+booking.EndTime).
		Msg("booking created")
	return booking, nil
}

func (s *BookingService) Update(ctx context.Context, id int64, patch domain.UpdateBookingPatch, actorID int64, privileged bool) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged && booking.UserID != actorID {
		return nil, ErrForbidden
	}
	if !privileged && (patch.Status != nil || patch.PricePerHour != nil) {
		return nil, fmt.Errorf("%w: status and rate changes require admin access", ErrForbidden)
	}
	if booking.Status == models.StatusCancelled {
		if patch.Status == nil || *patch.Status != models.StatusCancelled {
			return nil, fmt.Errorf("%w: booking is cancelled", ErrInvalidTransition)
		}
		return booking, nil
	}

	prev := *booking
	if err := s.applyPatch(ctx, booking, patch); err != nil {
		return nil, err
	}
	if *booking == prev {
		return booking, nil
	}

	if err := s.repo.UpdateBooking(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncSlotConflict()
			startMin, _ := schedule.ToMinutes(booking.StartTime)
			endMin, _ := schedule.ToMinutes(booking.EndTime)
			dayStart := schedule.Midnight(booking.DateOfRent)
			return nil, s.describeConflict(ctx, dayStart, dayStart.AddDate(0, 0, 1).Add(-time.Millisecond), startMin, endMin)
		}
		return nil, err
	}

	cancelled := prev.Status != models.StatusCancelled && booking.Status == models.StatusCancelled
	if cancelled {
		metrics.IncBookingCancelled()
		s.awardPoints(ctx, booking, -schedule.Points(booking.DurationHours))
	}

	s.invalidateDay(ctx, prev.DateOfRent)
	if !prev.DateOfRent.Equal(booking.DateOfRent) {
		s.invalidateDay(ctx, booking.DateOfRent)
	}
	s.publishEvent(events.EventBookingUpdated, booking, 0)
	s.enqueueSync(ctx, booking)
	s.notify(ctx, booking.UserID, "Бронирование изменено",
		fmt.Sprintf("Новое время: %s с %s до %s",
			booking.DateOfRent.Format(models.DateLayout), booking.StartTime, booking.EndTime))

	return booking, nil
}

// applyPatch merges the patch into booking, re-validating the slot window and
// re-deriving price whenever the window or the rate moved.
func (s *BookingService) applyPatch(ctx context.Context, booking *models.Booking, patch domain.UpdateBookingPatch) error {
	if patch.RenterName != nil {
		booking.RenterName = strings.TrimSpace(*patch.RenterName)
	}
	if patch.RenterPhone != nil {
		booking.RenterPhone = strings.TrimSpace(*patch.RenterPhone)
	}
	if patch.RenterEmail != nil {
		booking.RenterEmail = strings.TrimSpace(*patch.RenterEmail)
	}
	if patch.Comment != nil {
		booking.Comment = *patch.Comment
	}
	if err := validateContact(booking.RenterName, booking.RenterPhone, booking.RenterEmail, booking.Comment); err != nil {
		return err
	}

	windowChanged := patch.DateOfRent != nil || patch.StartTime != nil || patch.EndTime != nil
	if windowChanged {
		date := booking.DateOfRent.Format(models.DateLayout)
		if patch.DateOfRent != nil {
			date = *patch.DateOfRent
		}
		if patch.StartTime != nil {
			booking.StartTime = *patch.StartTime
		}
		if patch.EndTime != nil {
			booking.EndTime = *patch.EndTime
		}

		dayStart, dayEnd, err := schedule.ResolveDayBounds(date, s.loc)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := schedule.ValidateWindow(now, dayStart, booking.StartTime, booking.EndTime); err != nil {
			return err
		}
		if dayStart.After(now.AddDate(0, 0, s.maxAdvanceDays)) {
			return fmt.Errorf("%w: %s", ErrDateTooFar, date)
		}

		startMin, _ := schedule.ToMinutes(booking.StartTime)
		endMin, _ := schedule.ToMinutes(booking.EndTime)
		if err := s.checkSlotFree(ctx, dayStart, dayEnd, startMin, endMin, booking.ID); err != nil {
			return err
		}

		booking.DateOfRent = dayStart
		booking.DurationHours = schedule.DurationHours(startMin, endMin)
	}

	if patch.PricePerHour != nil {
		if *patch.PricePerHour <= 0 {
			return fmt.Errorf("%w: price per hour must be positive", ErrInvalidInput)
		}
		booking.PricePerHour = *patch.PricePerHour
	}
	if windowChanged || patch.PricePerHour != nil {
		booking.TotalPrice = schedule.Price(booking.DurationHours, booking.PricePerHour)
	}

	if patch.Status != nil && *patch.Status != booking.Status {
		if !models.ValidStatus(*patch.Status) {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *patch.Status)
		}
		if !canTransition(booking.Status, *patch.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, *patch.Status)
		}
		booking.Status = *patch.Status
	}
	return nil
}

// canTransition encodes the status machine: pending may confirm or cancel,
// confirmed may only cancel, cancelled is terminal.
func canTransition(from, to string) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusConfirmed || to == models.StatusCancelled
	case models.StatusConfirmed:
		return to == models.StatusCancelled
	default:
		return false
	}
}

// Delete is a soft cancel by the renter. A second delete reports
// ErrAlreadyCancelled, which the transport maps to an idempotent success.
func (s *BookingService) Delete(ctx context.Context, id, actorID int64, privileged bool) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged && booking.UserID != actorID {
		return nil, ErrForbidden
	}
	if booking.Status == models.StatusCancelled {
		return booking, ErrAlreadyCancelled
	}
	return s.cancel(ctx, booking)
}

// AdminCancel cancels any booking. Cancelling an already cancelled booking
// is a silent no-op.
func (s *BookingService) AdminCancel(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return booking, nil
	}
	return s.cancel(ctx, booking)
}

func (s *BookingService) cancel(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if err := s.repo.UpdateBookingStatus(ctx, booking.ID, models.StatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled
	metrics.IncBookingCancelled()

	pts := schedule.Points(booking.DurationHours)
	s.awardPoints(ctx, booking, -pts)
	s.invalidateDay(ctx, booking.DateOfRent)
	s.publishEvent(events.EventBookingCancelled, booking, -pts)
	s.enqueueSync(ctx, booking)
	s.notify(ctx, booking.UserID, "Бронирование отменено",
		fmt.Sprintf("Бронь на %s с %s до %s отменена",
			booking.DateOfRent.Format(models.DateLayout), booking.StartTime, booking.EndTime))

	s.logger.Info().Int64("booking_id", booking.ID).Msg("booking cancelled")
	return booking, nil
}

// AdminChangeStatus moves a booking through the status machine. Cancelled is
// terminal; cancelling deducts the points awarded at creation.
func (s *BookingService) AdminChangeStatus(ctx context.Context, id int64, newStatus string) (*models.Booking, error) {
	if !models.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, newStatus)
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == newStatus {
		return booking, nil
	}
	if !canTransition(booking.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, newStatus)
	}

	if newStatus == models.StatusCancelled {
		return s.cancel(ctx, booking)
	}

	if err := s.repo.UpdateBookingStatus(ctx, booking.ID, newStatus); err != nil {
		return nil, err
	}
	booking.Status = newStatus
	s.invalidateDay(ctx, booking.DateOfRent)
	s.publishEvent(events.EventBookingStatusChanged, booking, 0)
	s.enqueueSync(ctx, booking)
	s.notify(ctx, booking.UserID, "Статус бронирования изменен",
		fmt.Sprintf("Бронь на %s: %s", booking.DateOfRent.Format(models.DateLayout), booking.Status))
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// GetDaySchedule returns the non-cancelled bookings of one day, served
// through the cache. Conflict checks never use this path.
func (s *BookingService) GetDaySchedule(ctx context.Context, date string) ([]*models.Booking, error) {
	dayStart, dayEnd, err := schedule.ResolveDayBounds(date, s.loc)
	if err != nil {
		return nil, err
	}
	key := dayStart.Format(models.DateLayout)

	if s.cache != nil {
		if cached, err := s.cache.GetDay(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("schedule cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	bookings, err := s.repo.GetBookingsForDay(ctx, dayStart, dayEnd, 0)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetDay(ctx, key, bookings); err != nil {
			s.logger.Warn().Err(err).Str("date", key).Msg("schedule cache write failed")
		}
	}
	return bookings, nil
}

func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	return s.repo.ListBookings(ctx, filter)
}

// GetDailyBookings groups bookings of the period by calendar day, for the
// spreadsheet export.
func (s *BookingService) GetDailyBookings(ctx context.Context, from, to time.Time) (map[string][]*models.Booking, error) {
	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		key := b.DateOfRent.Format(models.DateLayout)
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

func (s *BookingService) checkSlotFree(ctx context.Context, dayStart, dayEnd time.Time, startMin, endMin int, excludeID int64) error {
	candidates, err := s.repo.GetBookingsForDay(ctx, dayStart, dayEnd, excludeID)
	if err != nil {
		return err
	}
	if conflict := schedule.FindConflict(candidates, startMin, endMin); conflict != nil {
		metrics.IncSlotConflict()
		return &schedule.ConflictError{
			BookingID: conflict.ID,
			StartTime: conflict.StartTime,
			EndTime:   conflict.EndTime,
		}
	}
	return nil
}

// describeConflict re-reads the day after a unique index rejection so the
// error carries the actual colliding window.
func (s *BookingService) describeConflict(ctx context.Context, dayStart, dayEnd time.Time, startMin, endMin int) error {
	candidates, err := s.repo.GetBookingsForDay(ctx, dayStart, dayEnd, 0)
	if err == nil {
		if conflict := schedule.FindConflict(candidates, startMin, endMin); conflict != nil {
			return &schedule.ConflictError{
				BookingID: conflict.ID,
				StartTime: conflict.StartTime,
				EndTime:   conflict.EndTime,
			}
		}
	}
	return &schedule.ConflictError{}
}

// registerRenter upserts the renter's user row so the points ledger has
// somewhere to land. Contact fields refresh, points are never touched here.
func (s *BookingService) registerRenter(ctx context.Context, booking *models.Booking) {
	if booking.UserID == 0 {
		return
	}
	user := &models.User{
		ID:    booking.UserID,
		Name:  booking.RenterName,
		Phone: booking.RenterPhone,
		Email: booking.RenterEmail,
	}
	if err := s.repo.EnsureUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", booking.UserID).Msg("failed to upsert renter")
	}
}

// awardPoints records a loyalty delta. The booking is already committed, so
// a failure here is logged rather than returned.
func (s *BookingService) awardPoints(ctx context.Context, booking *models.Booking, delta int64) {
	if booking.UserID == 0 || delta == 0 {
		return
	}
	if err := s.repo.AddUserPoints(ctx, booking.UserID, delta); err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", booking.UserID).
			Int64("delta", delta).
			Msg("failed to update user points")
	}
}

func (s *BookingService) invalidateDay(ctx context.Context, day time.Time) {
	if s.cache == nil {
		return
	}
	key := day.Format(models.DateLayout)
	if err := s.cache.InvalidateDay(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("date", key).Msg("schedule cache invalidation failed")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, pointsDelta int64) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		Reference:   booking.Reference,
		UserID:      booking.UserID,
		RenterName:  booking.RenterName,
		DateOfRent:  booking.DateOfRent.Format(models.DateLayout),
		StartTime:   booking.StartTime,
		EndTime:     booking.EndTime,
		TotalPrice:  booking.TotalPrice,
		Status:      booking.Status,
		PointsDelta: pointsDelta,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, "upsert", booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to enqueue sheets sync")
	}
}

func (s *BookingService) notify(ctx context.Context, userID int64, subject, body string) {
	if s.notifier == nil {
		return
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || user.TelegramChatID == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, user.TelegramChatID, subject, body); err != nil {
		metrics.IncNotifyFailure()
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to notify user")
	}
}

func validateContact(name, phone, email, comment string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: renter name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(phone) == "" {
		return fmt.Errorf("%w: renter phone is required", ErrInvalidInput)
	}
	if email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email %q", ErrInvalidInput, email)
	}
	if len([]rune(comment)) > models.MaxCommentLength {
		return fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidInput, models.MaxCommentLength)
	}
	return nil
}
