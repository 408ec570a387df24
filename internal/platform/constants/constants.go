// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Local limiter housekeeping and key prefixes.
  - Headers: Names shared by middleware and response writers.
  - Redis Prefixes: Key namespaces for tokens and rate-limit counters.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "sugarmill-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// RateLimitCleanupInterval is how often idle in-memory limiter entries are swept.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a key must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"
	HeaderRetryAfter    = "Retry-After"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixResetToken  = "auth:reset_token:"
	RedisPrefixVerifyToken = "auth:verify_token:"
	RedisPrefixRateLimit   = "ratelimit:"
)
