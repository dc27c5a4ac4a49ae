package repository

import (
	"context"
	"sync"
	"time"

	"fieldbook/internal/models"
)

type memoryEntry struct {
	bookings  []*models.Booking
	expiresAt time.Time
}

type MemoryScheduleCache struct {
	days sync.Map
	ttl  time.Duration
}

func NewMemoryScheduleCache(ttl time.Duration) *MemoryScheduleCache {
	return &MemoryScheduleCache{ttl: ttl}
}

func (c *MemoryScheduleCache) GetDay(ctx context.Context, date string) ([]*models.Booking, error) {
	val, ok := c.days.Load(date)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.days.Delete(date)
		return nil, nil
	}
	return entry.bookings, nil
}

func (c *MemoryScheduleCache) SetDay(ctx context.Context, date string, bookings []*models.Booking) error {
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	c.days.Store(date, &memoryEntry{bookings: bookings, expiresAt: time.Now().Add(c.ttl)})
	return nil
}

func (c *MemoryScheduleCache) InvalidateDay(ctx context.Context, date string) error {
	c.days.Delete(date)
	return nil
}
