// Package ratelimit throttles credential-guessing with a fixed-window counter
// in Redis, keyed per identifier and per IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("too many attempts")
	ErrRedisUnavailable = errors.New("rate limiter unavailable")
)

type LoginLimiter struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		redis:       client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Enforce checks both the identifier and IP counters before an attempt is made.
func (l *LoginLimiter) Enforce(ctx context.Context, identifier, ip string) error {
	if err := l.checkKey(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		if err := l.checkKey(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFailure bumps the counters after a failed credential check.
func (l *LoginLimiter) RegisterFailure(ctx context.Context, identifier, ip string) error {
	if err := l.bumpKey(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		return l.bumpKey(ctx, ipKey(ip))
	}
	return nil
}

// Reset clears the identifier counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) checkKey(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *LoginLimiter) bumpKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

func identifierKey(identifier string) string {
	return "login:id:" + identifier
}

func ipKey(ip string) string {
	return "login:ip:" + ip
}
