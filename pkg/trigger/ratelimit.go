package trigger

import (
	_ "embed"
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// RateLimitResult reports the outcome of a single limiter check.
type RateLimitResult struct {
	Allowed           bool
	CurrentCount      int64
	Limit             int64
	RetryAfterSeconds int64
}

// RateLimiter throttles how many webhook requests a trigger node may
// receive within a fixed window, using a Redis-backed counter so the limit is
// shared across every process fronting that node.
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
}

// NewRateLimiter wraps an already-connected Redis client.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{redis: client, script: redis.NewScript(rateLimitScript)}
}

// Allow checks and increments the counter for nodeID within windowSec,
// returning whether the request should proceed.
func (r *RateLimiter) Allow(ctx context.Context, nodeID string, limit int64, windowSec int) (*RateLimitResult, error) {
	key := fmt.Sprintf("wkflws:rate_limit:%s", nodeID)
	raw, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("unexpected rate limit script result: %#v", raw)
	}

	return &RateLimitResult{
		Allowed:           values[0].(int64) == 1,
		CurrentCount:      values[1].(int64),
		Limit:             values[2].(int64),
		RetryAfterSeconds: values[3].(int64),
	}, nil
}
