package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("reschedule lock not acquired")
)

// Locker guards the reschedule critical section per appointment, so two
// concurrent reschedules of the same appointment cannot both submit.
type Locker interface {
	WithAppointmentLock(ctx context.Context, appointmentID int64, fn func(ctx context.Context) error) error
}

type rescheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRescheduleLocker creates a locker that uses a per appointment Redis key
func NewRescheduleLocker(client *redis.Client, ttl time.Duration) Locker {
	return &rescheduleLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *rescheduleLocker) WithAppointmentLock(ctx context.Context, appointmentID int64, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:reschedule:%d", appointmentID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire reschedule lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *rescheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release reschedule lock: %w", err)
	}
	return nil
}
