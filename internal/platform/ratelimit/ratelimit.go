// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit provides the request throttling capability used by the HTTP layer.

Limits are counted per key (typically principal or client IP plus route), and the
counter store is injected rather than held in package state:

  - RedisLimiter: fixed-window counters shared by every API process.
  - MemoryLimiter: token buckets local to one process, for development and tests.
*/
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the counter store cannot be reached.
var ErrUnavailable = errors.New("ratelimit: counter store unavailable")

// Decision is the outcome of a single [Limiter.Allow] call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy is the request budget per window.
type Policy struct {
	Requests int
	Window   time.Duration
}
