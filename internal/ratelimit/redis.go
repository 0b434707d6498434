package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript performs the window reset-or-increment as a single atomic
// operation on the Redis side. Two concurrent requests on the same key can
// never both observe count = limit-1.
var incrementScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
local count
if (not start) or (now >= start + window) then
  redis.call('HMSET', KEYS[1], 'start', now, 'count', 1)
  start = now
  count = 1
else
  count = redis.call('HINCRBY', KEYS[1], 'count', 1)
end
redis.call('EXPIRE', KEYS[1], window)
return {count, start}
`)

// RedisStore implements CounterStore on a shared Redis instance.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore constructs a RedisStore. Keys are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

// Increment atomically bumps the counter for key, resetting the window when
// it has elapsed.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	raw, err := incrementScript.Run(ctx, s.client, []string{s.prefix + ":" + key}, s.now().Unix(), seconds).Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(raw) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script reply of length %d", len(raw))
	}
	count, ok := raw[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unexpected count type %T", raw[0])
	}
	start, ok := raw[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unexpected window start type %T", raw[1])
	}
	return count, time.Unix(start, 0), nil
}

var _ CounterStore = (*RedisStore)(nil)
