package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow prunes, optionally appends and reports a ZSET window in one round trip.
// ARGV: now(ms), window(ms), limit, member, record(0|1)
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local record = ARGV[5] == "1"

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local added = 0
if record and count < limit then
  redis.call("ZADD", key, now, ARGV[4])
  count = count + 1
  added = 1
end
if count > 0 then
  redis.call("PEXPIRE", key, window)
end

local oldest = -1
local first = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if first[2] then
  oldest = tonumber(first[2])
end
return {added, count, oldest}
`)

// RedisStore shares windows across processes through sorted sets.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Peek(ctx context.Context, key string, now time.Time, window time.Duration) (WindowState, error) {
	return s.run(ctx, key, now, window, 0, false)
}

func (s *RedisStore) Add(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (WindowState, error) {
	return s.run(ctx, key, now, window, limit, true)
}

// Sweep is a no-op: every window carries its own PEXPIRE.
func (s *RedisStore) Sweep(context.Context, time.Time, time.Duration) (int, error) {
	return 0, nil
}

func (s *RedisStore) run(ctx context.Context, key string, now time.Time, window time.Duration, limit int, record bool) (WindowState, error) {
	flag := "0"
	if record {
		flag = "1"
	}
	vals, err := slidingWindow.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(), flag,
	).Int64Slice()
	if err != nil {
		return WindowState{}, err
	}
	if len(vals) != 3 {
		return WindowState{}, fmt.Errorf("unexpected script reply of length %d", len(vals))
	}

	st := WindowState{Added: vals[0] == 1, Count: int(vals[1])}
	if vals[2] >= 0 {
		st.Oldest = time.UnixMilli(vals[2])
	}
	return st, nil
}
