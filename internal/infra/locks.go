package infra

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another worker already holds the lock.
var ErrLockHeld = errors.New("lock already held")

// Lock is a held distributed lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes work across process instances: the drain loop's
// single-flight lock and the per-(store,integration) pull mutex.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type redisLocker struct{ client *redislock.Client }

// NewLocker builds a redislock-backed Locker.
func NewLocker(rdb *redis.Client) Locker {
	return &redisLocker{client: redislock.New(rdb)}
}

func (l *redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}
