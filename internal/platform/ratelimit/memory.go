// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/sugarmill/internal/platform/constants"
)

type memoryClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory.
//
// It does not enforce a global budget across several API processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	clients map[string]*memoryClient
	every   rate.Limit
	burst   int
}

// NewMemoryLimiter creates a process-local limiter and starts a cleanup routine
// that stops when ctx is cancelled.
func NewMemoryLimiter(ctx context.Context, policy Policy) *MemoryLimiter {
	limiter := &MemoryLimiter{
		clients: make(map[string]*memoryClient),
		every:   rate.Every(policy.Window / time.Duration(max(policy.Requests, 1))),
		burst:   max(policy.Requests, 1),
	}

	go limiter.sweep(ctx)

	return limiter
}

// Allow consumes one token for key.
func (limiter *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	client, found := limiter.clients[key]

	// Initialize a new bucket if this is a fresh key
	if !found {
		client = &memoryClient{limiter: rate.NewLimiter(limiter.every, limiter.burst)}
		limiter.clients[key] = client
	}

	client.lastSeen = time.Now()

	reservation := client.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return Decision{Allowed: false, RetryAfter: delay.Round(time.Second)}, nil
	}

	remaining := int(math.Floor(client.limiter.Tokens()))
	return Decision{Allowed: true, Remaining: max(remaining, 0)}, nil
}

// sweep drops buckets that have been idle for longer than the client TTL.
func (limiter *MemoryLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.mu.Lock()
			for key, client := range limiter.clients {
				if time.Since(client.lastSeen) > constants.RateLimitClientTTL {
					delete(limiter.clients, key)
				}
			}
			limiter.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
