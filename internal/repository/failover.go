package repository

import (
	"context"
	"sync/atomic"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverScheduleCache prefers the Redis cache and degrades to the memory
// cache when Redis starts failing, retrying the primary after a minute.
type FailoverScheduleCache struct {
	primary   domain.ScheduleCache
	fallback  domain.ScheduleCache
	log       zerolog.Logger
	isDown    atomic.Bool
	downSince atomic.Int64
}

func NewFailoverScheduleCache(primary, fallback domain.ScheduleCache, logger *zerolog.Logger) *FailoverScheduleCache {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "schedule-cache").Logger()
	}
	return &FailoverScheduleCache{primary: primary, fallback: fallback, log: log}
}

func (c *FailoverScheduleCache) markDown(err error) {
	c.log.Error().Err(err).Msg("primary schedule cache failed, falling back to memory")
	c.isDown.Store(true)
	c.downSince.Store(time.Now().UnixNano())
}

func (c *FailoverScheduleCache) primaryUsable() bool {
	if !c.isDown.Load() {
		return true
	}
	// probe the primary again after a cooldown
	if time.Since(time.Unix(0, c.downSince.Load())) > time.Minute {
		c.isDown.Store(false)
		return true
	}
	return false
}

func (c *FailoverScheduleCache) GetDay(ctx context.Context, date string) ([]*models.Booking, error) {
	if c.primaryUsable() {
		bookings, err := c.primary.GetDay(ctx, date)
		if err == nil {
			return bookings, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetDay(ctx, date)
}

func (c *FailoverScheduleCache) SetDay(ctx context.Context, date string, bookings []*models.Booking) error {
	if c.primaryUsable() {
		if err := c.primary.SetDay(ctx, date, bookings); err != nil {
			c.markDown(err)
		}
	}
	return c.fallback.SetDay(ctx, date, bookings)
}

func (c *FailoverScheduleCache) InvalidateDay(ctx context.Context, date string) error {
	// инвалидируем оба уровня, иначе память может отдать устаревший день
	if c.primaryUsable() {
		if err := c.primary.InvalidateDay(ctx, date); err != nil {
			c.markDown(err)
		}
	}
	return c.fallback.InvalidateDay(ctx, date)
}
