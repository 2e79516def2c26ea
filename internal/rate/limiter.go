package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a fixed-window budget: at most Limit hits per Window for one key.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision reports the state of a window after a hit.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces fixed-window budgets using Redis counters shared by every
// replica.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{redis: redisClient, prefix: prefix, now: time.Now}
}

// The window TTL is only set by the hit that creates the key.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {n, ttl}
`)

// Hit counts one request for key against rule.
func (l *Limiter) Hit(ctx context.Context, rule Rule, key string) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := hitScript.Run(ctx, l.redis, []string{l.key(rule, key)}, strconv.FormatInt(rule.Window.Milliseconds(), 10)).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, ttl := res[0], res[1]
	if ttl < 0 {
		ttl = rule.Window.Milliseconds()
	}
	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= int64(rule.Limit),
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(time.Duration(ttl) * time.Millisecond),
	}
	if !d.Allowed {
		return d, ErrRateLimited
	}
	return d, nil
}

// Forgive returns one hit to the window. Used for budgets that only count
// unsuccessful requests.
func (l *Limiter) Forgive(ctx context.Context, rule Rule, key string) error {
	k := l.key(rule, key)
	n, err := l.redis.Decr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n <= 0 {
		if err := l.redis.Del(ctx, k).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the window for key.
func (l *Limiter) Reset(ctx context.Context, rule Rule, key string) error {
	if err := l.redis.Del(ctx, l.key(rule, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(rule Rule, key string) string {
	return l.prefix + ":" + rule.Name + ":" + key
}
