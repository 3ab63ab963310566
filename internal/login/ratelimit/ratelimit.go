// Package ratelimit implements the fixed-window attempt limiter both login
// phases throttle on. Counters live in Redis so they are atomic across
// processes sharing the same account store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is the fixed throttle window. A key's first hit starts the window;
// the counter and any block marker lapse together when it ends.
const Window = time.Minute

var ErrUnavailable = errors.New("ratelimit: store unavailable")

// Limiter is the attempt-counting contract the login phases consume.
type Limiter interface {
	// TooManyAttempts reports whether key has reached max failures within
	// the current window.
	TooManyAttempts(ctx context.Context, key string, max int) (bool, error)

	// Hit records one failure and returns the new count.
	Hit(ctx context.Context, key string) (int64, error)

	// Attempts returns the current failure count for key.
	Attempts(ctx context.Context, key string) (int64, error)

	// Clear forgets the counter and block marker for key.
	Clear(ctx context.Context, key string) error

	// AvailableIn returns how long until key's window resets.
	AvailableIn(ctx context.Context, key string) (time.Duration, error)

	// MarkBlocked records that key has tripped the limit, with the marker
	// lapsing after ttl. It reports whether this is the first trip of the
	// current block, which separates "just locked out" from persistent
	// probing in the emitted events.
	MarkBlocked(ctx context.Context, key string, ttl time.Duration) (first bool, err error)
}

// RedisLimiter implements Limiter on INCR/EXPIRE/TTL.
type RedisLimiter struct {
	redis *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{redis: client}
}

func attemptsKey(key string) string { return "login:att:" + key }
func blockedKey(key string) string  { return "login:blk:" + key }

func (l *RedisLimiter) TooManyAttempts(ctx context.Context, key string, max int) (bool, error) {
	count, err := l.Attempts(ctx, key)
	if err != nil {
		return false, err
	}
	return count >= int64(max), nil
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, attemptsKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, attemptsKey(key), Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}

func (l *RedisLimiter) Attempts(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, attemptsKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (l *RedisLimiter) Clear(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, attemptsKey(key), blockedKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *RedisLimiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, attemptsKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *RedisLimiter) MarkBlocked(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = Window
	}
	first, err := l.redis.SetNX(ctx, blockedKey(key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return first, nil
}
