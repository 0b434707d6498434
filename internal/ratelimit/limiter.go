package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExceeded is the sentinel wrapped by every ExceededError. Being throttled
// is an expected outcome, distinct from systemic store failures.
var ErrExceeded = errors.New("ratelimit: exceeded")

// ExceededError reports a request over its window budget, carrying the
// metadata callers need for Retry-After style headers.
type ExceededError struct {
	Key     string
	Limit   int
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("ratelimit: key %s over limit %d until %s", e.Key, e.Limit, e.ResetAt.Format(time.RFC3339))
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }

// CounterStore is the shared atomic counter backing the limiter. Increment
// must atomically either bump the counter for the current window or reset it
// when the window has elapsed; the limiter never issues read-then-write pairs
// of its own.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)
}

// Result describes the outcome of one enforcement call.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces fixed-window request budgets over a shared counter store.
// It holds no counters in process memory; the service runs as multiple
// instances against the same store.
type Limiter struct {
	store CounterStore
}

// NewLimiter constructs a Limiter over the given store.
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Enforce spends one unit of the key's budget. On success the result carries
// the remaining budget; over budget it returns the result alongside an
// *ExceededError. Any other error is a store failure.
func (l *Limiter) Enforce(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 {
		return Result{}, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return Result{}, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}

	count, windowStart, err := l.store.Increment(ctx, key, window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: increment %s: %w", key, err)
	}

	resetAt := windowStart.Add(window)
	if count > int64(limit) {
		return Result{Limit: limit, Remaining: 0, ResetAt: resetAt},
			&ExceededError{Key: key, Limit: limit, ResetAt: resetAt}
	}
	return Result{Limit: limit, Remaining: limit - int(count), ResetAt: resetAt}, nil
}
