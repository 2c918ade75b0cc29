// Package redis provides the Redis client plumbing for the service plus the
// per-account dispatch run lock.
//
// It wraps [github.com/redis/go-redis/v9] with retrying startup, a readiness
// probe, and a graceful shutdown hook. RunLock guarantees at most one active
// dispatch run per account owner across all processes: the lock is taken
// with SET NX and a TTL, and released with a compare-and-delete script so an
// expired lock re-acquired by another run cannot be released by the first
// holder.
//
// # Configuration
//
// All settings come from environment variables:
//
//	REDIS_URL              - Connection URL, redis:// or rediss:// (required)
//	REDIS_POOL_SIZE        - Maximum connections (default: 10)
//	REDIS_MIN_IDLE_CONNS   - Minimum idle connections (default: 5)
//	REDIS_MAX_IDLE_TIME    - Maximum connection idle time (default: 10m)
//	REDIS_MAX_LIFETIME     - Maximum connection lifetime (default: 30m)
//	REDIS_READ_TIMEOUT     - Read timeout (default: 3s)
//	REDIS_WRITE_TIMEOUT    - Write timeout (default: 3s)
//	REDIS_DIAL_TIMEOUT     - Dial timeout (default: 5s)
//	REDIS_RETRY_ATTEMPTS   - Startup retry attempts (default: 3)
//	REDIS_RETRY_INTERVAL   - Base retry interval (default: 5s)
//
// # Usage
//
//	client, err := redis.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//
//	locks := redis.NewRunLock(client, time.Hour)
//	release, err := locks.Acquire(ctx, ownerID)
//	if err != nil {
//	    return err // redis.ErrRunActive when a run is in flight
//	}
//	defer release(ctx)
package redis
