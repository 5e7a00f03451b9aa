// Package ratelimit throttles failed logins with fixed-window counters
// kept in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned once a key exceeds its failure budget.
	ErrRateLimited = errors.New("too many failed attempts")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// Limiter counts failures per key. A key is blocked once its counter
// reaches MaxAttempts and unblocks when the window expires.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "login"
	}
	return &Limiter{redis: client, config: cfg}, nil
}

// Check returns ErrRateLimited when key has used up its budget.
func (l *Limiter) Check(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Fail records one failed attempt for key.
func (l *Limiter) Fail(ctx context.Context, key string) error {
	k := l.key(key)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Fixed window: TTL is set by the first failure only.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Reset clears the failure counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for key.
func (l *Limiter) Attempts(ctx context.Context, key string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}

func (l *Limiter) key(k string) string {
	return l.config.Prefix + ":" + k
}
