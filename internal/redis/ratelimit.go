package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether one more request for key fits in the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

type RateDecision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// windowLimiter counts requests per key in fixed windows. Keys expire with their
// window, so idle clients cost nothing.
type windowLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) RateLimiter {
	return &windowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

var incrWithExpiry = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func (l *windowLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	res, err := incrWithExpiry.Run(ctx, l.client, []string{k}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		// fail open
		return RateDecision{Allowed: true, Limit: l.limit}, fmt.Errorf("rate limit check: %w", err)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}

	return RateDecision{
		Allowed: count <= l.limit,
		Count:   count,
		Limit:   l.limit,
		ResetAt: time.Now().Add(ttl),
	}, nil
}
