// Package repository holds the day-schedule read cache: a Redis primary with
// an in-memory fallback behind a failover wrapper. The cache only backs the
// public schedule endpoint; conflict checks always go to the store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration) *RedisScheduleCache {
	return &RedisScheduleCache{client: client, ttl: ttl}
}

func dayKey(date string) string {
	return "schedule:" + date
}

func (c *RedisScheduleCache) GetDay(ctx context.Context, date string) ([]*models.Booking, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, dayKey(date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule from redis: %w", err)
	}

	var bookings []*models.Booking
	if err := json.Unmarshal([]byte(val), &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return bookings, nil
}

func (c *RedisScheduleCache) SetDay(ctx context.Context, date string, bookings []*models.Booking) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	data, err := json.Marshal(bookings)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	if err := c.client.Set(ctx, dayKey(date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set schedule in redis: %w", err)
	}
	return nil
}

func (c *RedisScheduleCache) InvalidateDay(ctx context.Context, date string) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Del(ctx, dayKey(date)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate schedule in redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
