// Package worker drains booking sync tasks into the Google spreadsheet in
// the background, so booking requests never wait on the Sheets API.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskUpdateStatus = "update_status"

	overflowKey   = "fieldbook:sheets:overflow"
	deadLetterKey = "fieldbook:sheets:deadletter"
)

// SheetsClient is the slice of the spreadsheet writer the worker needs.
type SheetsClient interface {
	ReplaceBookings(ctx context.Context, bookings []*models.Booking) error
}

// BookingSource provides the rows to publish.
type BookingSource interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

// SyncTask marks the schedule dirty. The worker always publishes a full
// window snapshot, so the task payload is informational.
type SyncTask struct {
	Type       string    `json:"type"`
	BookingID  int64     `json:"booking_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type SheetsWorker struct {
	source       BookingSource
	sheets       SheetsClient
	redis        *redis.Client
	backoff      Backoff
	queue        chan SyncTask
	pollInterval time.Duration
	windowBack   time.Duration
	windowAhead  time.Duration
	log          zerolog.Logger
}

func NewSheetsWorker(source BookingSource, sheets SheetsClient, redisClient *redis.Client, backoff Backoff, logger *zerolog.Logger) *SheetsWorker {
	if backoff.MaxAttempts == 0 {
		backoff = DefaultBackoff()
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "sheets-worker").Logger()
	}
	return &SheetsWorker{
		source:       source,
		sheets:       sheets,
		redis:        redisClient,
		backoff:      backoff,
		queue:        make(chan SyncTask, models.WorkerQueueSize),
		pollInterval: 2 * time.Second,
		windowBack:   31 * 24 * time.Hour,
		windowAhead:  62 * 24 * time.Hour,
		log:          log,
	}
}

// EnqueueTask schedules a sync without blocking the caller. When the channel
// is full the task is parked in redis; with no redis it is dropped, which
// only delays the next snapshot.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	task := SyncTask{Type: taskType, EnqueuedAt: time.Now()}
	if booking != nil {
		task.BookingID = booking.ID
	}

	select {
	case w.queue <- task:
		return nil
	default:
	}

	if w.redis == nil {
		w.log.Warn().Str("task", taskType).Msg("sync queue full and no redis, dropping task")
		return nil
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode sync task: %w", err)
	}
	if err := w.redis.LPush(ctx, overflowKey, payload).Err(); err != nil {
		return fmt.Errorf("park sync task in redis: %w", err)
	}
	return nil
}

// Run processes tasks until ctx is cancelled.
func (w *SheetsWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.process(ctx, task)
		case <-ticker.C:
			if task, ok := w.popOverflow(ctx); ok {
				w.process(ctx, task)
			}
		}
	}
}

func (w *SheetsWorker) popOverflow(ctx context.Context) (SyncTask, bool) {
	if w.redis == nil {
		return SyncTask{}, false
	}
	raw, err := w.redis.RPop(ctx, overflowKey).Result()
	if err == redis.Nil {
		return SyncTask{}, false
	}
	if err != nil {
		w.log.Error().Err(err).Msg("failed to pop parked sync task")
		return SyncTask{}, false
	}

	var task SyncTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		w.log.Error().Err(err).Str("raw", raw).Msg("failed to decode parked sync task")
		return SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) process(ctx context.Context, task SyncTask) {
	var lastErr error
	for attempt := 1; attempt <= w.backoff.MaxAttempts; attempt++ {
		lastErr = w.syncOnce(ctx)
		if lastErr == nil {
			return
		}
		w.log.Warn().Err(lastErr).Int("attempt", attempt).Int64("booking_id", task.BookingID).Msg("sheets sync failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff.Delay(attempt)):
		}
	}

	w.log.Error().Err(lastErr).Int64("booking_id", task.BookingID).Msg("sheets sync exhausted retries")
	w.deadLetter(ctx, task)
}

func (w *SheetsWorker) syncOnce(ctx context.Context) error {
	now := time.Now()
	bookings, err := w.source.ListBookings(ctx, models.BookingFilter{
		From: now.Add(-w.windowBack),
		To:   now.Add(w.windowAhead),
	})
	if err != nil {
		return fmt.Errorf("load bookings for sync: %w", err)
	}
	return w.sheets.ReplaceBookings(ctx, bookings)
}

func (w *SheetsWorker) deadLetter(ctx context.Context, task SyncTask) {
	if w.redis == nil {
		return
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, payload).Err(); err != nil {
		w.log.Error().Err(err).Msg("failed to write dead letter")
	}
}
