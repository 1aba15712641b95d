package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wipetrace/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wipetrace:rl:"

// Redis counts requests in a shared fixed window so throttling holds across
// service replicas.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// INCR and PEXPIRE run as one script; concurrent requests opening a fresh
// window can therefore never leave an unexpiring counter behind.
var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		now:    now,
	}, nil
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis < 1 {
		windowMillis = time.Second.Milliseconds()
	}
	values, err := allowScript.Run(ctx, r.client, []string{keyPrefix + key}, windowMillis).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(values) != 2 {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script returned %d values", len(values))
	}
	return r.decision(values[0], values[1], limit), nil
}

func (r *Redis) decision(count, ttlMillis int64, limit int) domain.RateLimitDecision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := r.now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return domain.RateLimitDecision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

var _ domain.RateLimiter = (*Redis)(nil)
