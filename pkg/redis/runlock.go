package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if it still holds our token, so a
// lock that expired and was re-acquired by another run is never released
// from under it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RunLock serializes dispatch runs per account owner. Acquire succeeds for
// at most one holder per key until Release or TTL expiry; the TTL bounds
// how long a crashed process can block the next run.
type RunLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRunLock creates a RunLock. The TTL should comfortably exceed the
// longest expected dispatch run.
func NewRunLock(client redis.UniversalClient, ttl time.Duration) *RunLock {
	return &RunLock{client: client, ttl: ttl}
}

// Acquire takes the lock for the given owner. Returns ErrRunActive when
// another run already holds it. The returned release function is safe to
// call after expiry.
func (l *RunLock) Acquire(ctx context.Context, ownerID int64) (release func(context.Context) error, err error) {
	key := runLockKey(ownerID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunActive
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis: release run lock: %w", err)
		}
		return nil
	}, nil
}

func runLockKey(ownerID int64) string {
	return fmt.Sprintf("dispatch:run:%d", ownerID)
}
