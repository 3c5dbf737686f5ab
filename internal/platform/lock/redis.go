package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

const keyPrefix = "engine:lock:"

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was re-acquired elsewhere is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a single-instance SET NX PX lock. The TTL bounds how long a
// crashed holder can block others.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.poll = d
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    30 * time.Second,
		poll:   25 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock polls until the key is acquired or ctx ends.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	acquire := func() error {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire lock %s: %w", key, errors.Join(sentinel.ErrUnavailable, err)))
		}
		if !ok {
			return sentinel.ErrLockHeld
		}
		return nil
	}
	if err := backoff.Retry(acquire, backoff.WithContext(backoff.NewConstantBackOff(r.poll), ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		}
		return nil, err
	}

	return func() {
		// Release must run even when the caller's ctx is already cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}, nil
}
