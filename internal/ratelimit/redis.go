package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS[1] counter; ARGV[1] max; ARGV[2] window ms.
// Returns {allowed, count, pttl}. A rejected call leaves the counter alone.
var fixedWindow = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[1])
if current >= max then
  return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if current == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
return {1, current, ttl}
`)

// RedisLimiter is the same fixed window kept in redis. Counters expire with
// their window so no sweep is needed.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	opts   Options
}

func NewRedisLimiter(client redis.Scripter, prefix string, opts Options) *RedisLimiter {
	if prefix == "" {
		prefix = "rate_limit:"
	}
	return &RedisLimiter{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (l *RedisLimiter) Check(ctx context.Context, clientID string) (Decision, error) {
	if clientID == "" {
		clientID = UnknownClient
	}
	res, err := fixedWindow.Run(ctx, l.client,
		[]string{l.prefix + clientID},
		l.opts.Max, l.opts.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: redis: unexpected reply %v", res)
	}

	d := Decision{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		Limit:   l.opts.Max,
	}
	if res[2] > 0 {
		d.ResetAt = l.opts.Now().Add(time.Duration(res[2]) * time.Millisecond)
	}
	if !d.Allowed {
		return d, ErrRejected
	}
	return d, nil
}
