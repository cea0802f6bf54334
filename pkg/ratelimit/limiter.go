// Package ratelimit throttles OTP sends per phone number and purpose using Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited is wrapped by every LimitError
var ErrLimited = errors.New("rate limited")

// LimitError reports how long the caller has to wait
type LimitError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s; retry after %d seconds", e.Reason, int(e.RetryAfter.Seconds()))
}

func (e *LimitError) Unwrap() error { return ErrLimited }

// Limiter enforces a cooldown between requests and a cap per window. Going
// over the cap blocks the key for BlockFor.
type Limiter struct {
	client      redis.UniversalClient
	prefix      string
	window      time.Duration
	maxInWindow int64
	cooldown    time.Duration
	blockFor    time.Duration
}

// NewLimiter creates a new Limiter
func NewLimiter(client redis.UniversalClient, prefix string, window time.Duration, max int, cooldown, blockFor time.Duration) *Limiter {
	if blockFor <= 0 {
		blockFor = window * 3
	}
	return &Limiter{
		client:      client,
		prefix:      prefix,
		window:      window,
		maxInWindow: int64(max),
		cooldown:    cooldown,
		blockFor:    blockFor,
	}
}

// Allow records a request for key and returns a *LimitError when it must be refused
func (l *Limiter) Allow(ctx context.Context, key string) error {
	blockKey := fmt.Sprintf("%s:block:%s", l.prefix, key)
	lastKey := fmt.Sprintf("%s:last:%s", l.prefix, key)
	countKey := fmt.Sprintf("%s:count:%s", l.prefix, key)

	if ttl, err := l.client.TTL(ctx, blockKey).Result(); err != nil {
		return fmt.Errorf("failed to read block key: %w", err)
	} else if ttl > 0 {
		return &LimitError{Reason: "too many requests", RetryAfter: ttl}
	}

	if ttl, err := l.client.TTL(ctx, lastKey).Result(); err != nil {
		return fmt.Errorf("failed to read cooldown key: %w", err)
	} else if ttl > 0 {
		return &LimitError{Reason: "please wait before requesting again", RetryAfter: ttl}
	}

	count, err := l.client.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, countKey, l.window).Err(); err != nil {
			return fmt.Errorf("failed to set window: %w", err)
		}
	}

	if count > l.maxInWindow {
		if err := l.client.Set(ctx, blockKey, "1", l.blockFor).Err(); err != nil {
			return fmt.Errorf("failed to set block key: %w", err)
		}
		return &LimitError{Reason: "too many requests", RetryAfter: l.blockFor}
	}

	if l.cooldown > 0 {
		if err := l.client.Set(ctx, lastKey, "1", l.cooldown).Err(); err != nil {
			return fmt.Errorf("failed to set cooldown key: %w", err)
		}
	}
	return nil
}

// Reset clears every key tracked for key
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx,
		fmt.Sprintf("%s:block:%s", l.prefix, key),
		fmt.Sprintf("%s:last:%s", l.prefix, key),
		fmt.Sprintf("%s:count:%s", l.prefix, key),
	).Err()
}
