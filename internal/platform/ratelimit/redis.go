// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/sugarmill/internal/platform/constants"
)

// windowScript increments the counter and guarantees it carries an expiry in one
// atomic step. A counter found without a TTL gets one, so no key outlives its window.
var windowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

// RedisLimiter enforces a fixed-window budget with counters in Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
}

// NewRedisLimiter creates a limiter whose counters live in Redis.
func NewRedisLimiter(client redis.UniversalClient, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy}
}

// Allow counts one request for key and reports whether it is within budget.
func (limiter *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := constants.RedisPrefixRateLimit + key

	values, err := windowScript.Run(ctx, limiter.client, []string{redisKey}, limiter.policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(values) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply %v", ErrUnavailable, values)
	}

	count, ttl := values[0], time.Duration(values[1])*time.Millisecond

	if count <= int64(limiter.policy.Requests) {
		return Decision{Allowed: true, Remaining: limiter.policy.Requests - int(count)}, nil
	}

	return Decision{Allowed: false, RetryAfter: ttl.Round(time.Second)}, nil
}
