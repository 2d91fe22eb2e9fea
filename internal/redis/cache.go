package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/televita-health/scheduling/internal/schedule"
)

// ErrCacheMiss is returned when no bucket is cached for a provider day.
var ErrCacheMiss = errors.New("availability not cached")

// AvailabilityCache stores precomputed day-availability buckets so calendar
// navigation does not re-read a month of appointment rows per request.
type AvailabilityCache interface {
	Get(ctx context.Context, providerID uuid.UUID, date string) (schedule.DayAvailability, error)
	Set(ctx context.Context, providerID uuid.UUID, date string, v schedule.DayAvailability) error
}

type availabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) AvailabilityCache {
	return &availabilityCache{
		client: client,
		ttl:    ttl,
	}
}

type cachedAvailability struct {
	Level         schedule.AvailabilityLevel `json:"level"`
	OpenMinutes   int                        `json:"open_minutes"`
	BookedMinutes int                        `json:"booked_minutes"`
}

func availabilityKey(providerID uuid.UUID, date string) string {
	return fmt.Sprintf("availability:%s:%s", providerID, date)
}

func (c *availabilityCache) Get(ctx context.Context, providerID uuid.UUID, date string) (schedule.DayAvailability, error) {
	raw, err := c.client.Get(ctx, availabilityKey(providerID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return schedule.DayAvailability{}, ErrCacheMiss
		}
		return schedule.DayAvailability{}, fmt.Errorf("get availability cache: %w", err)
	}

	var v cachedAvailability
	if err := json.Unmarshal(raw, &v); err != nil {
		// A corrupt entry behaves like a miss; the caller recomputes.
		return schedule.DayAvailability{}, ErrCacheMiss
	}

	return schedule.DayAvailability{
		Level:         v.Level,
		OpenMinutes:   v.OpenMinutes,
		BookedMinutes: v.BookedMinutes,
	}, nil
}

func (c *availabilityCache) Set(ctx context.Context, providerID uuid.UUID, date string, v schedule.DayAvailability) error {
	raw, err := json.Marshal(cachedAvailability{
		Level:         v.Level,
		OpenMinutes:   v.OpenMinutes,
		BookedMinutes: v.BookedMinutes,
	})
	if err != nil {
		return fmt.Errorf("marshal availability: %w", err)
	}

	if err := c.client.Set(ctx, availabilityKey(providerID, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set availability cache: %w", err)
	}

	return nil
}
