package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "statproxy:ratelimit:"

// reserveScript is the shared compute-then-commit step. It computes the
// earliest permitted request time from the mirrored state and either
// commits the request (returns 0) or returns the wait in milliseconds.
// Running it as one script keeps the read-modify-write atomic across
// processes sharing the same Redis.
var reserveScript = redis.NewScript(`
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0')
local ws = tonumber(redis.call('HGET', KEYS[1], 'window_start') or '0')
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local now = tonumber(ARGV[1])
local min_delay = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local max_requests = tonumber(ARGV[4])

if now - ws >= window then
  ws = now
  count = 0
end

local earliest = last + min_delay
if count >= max_requests then
  local window_end = ws + window
  if window_end > earliest then
    earliest = window_end
  end
end

if earliest > now then
  return earliest - now
end

redis.call('HSET', KEYS[1], 'last', now, 'window_start', ws, 'count', count + 1)
redis.call('PEXPIRE', KEYS[1], window * 2)
return 0
`)

// reserveRemote runs the reserve script for one service. Returns the wait
// duration (0 means the request was committed).
func reserveRemote(ctx context.Context, client *redis.Client, service string, limits Limits, now time.Time) (time.Duration, error) {
	waitMs, err := reserveScript.Run(ctx, client,
		[]string{redisKeyPrefix + service},
		now.UnixMilli(),
		limits.MinDelay.Milliseconds(),
		limits.Window.Milliseconds(),
		limits.MaxRequests,
	).Int64()
	if err != nil {
		return 0, err
	}
	return time.Duration(waitMs) * time.Millisecond, nil
}
