// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. An optional '.env' file
is loaded first through 'joho/godotenv' for local development; real environment
variables always win over the file.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenService) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// minSecretLength is the minimum byte length of an HMAC signing secret.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Sugarmill API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing. Each token kind has its own secret.
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET,required"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,required"`
	JWTIssuer        string `env:"JWT_ISSUER"   envDefault:"sugarmill"`
	JWTAudience      string `env:"JWT_AUDIENCE" envDefault:"sugarmill-web"`

	// Password hashing
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Account lockout
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION"  envDefault:"2h"`

	// Per-principal request throttling
	RateLimitBackend  string        `env:"RATE_LIMIT_BACKEND"  envDefault:"redis"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW"   envDefault:"15m"`

	// Message broker for account decisions and email tokens. Empty disables publishing.
	AMQPURL     string `env:"AMQP_URL"`
	NotifyQueue string `env:"NOTIFY_QUEUE" envDefault:"sugarmill.notifications"`

	// Cross-Origin Resource Sharing
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load reads an optional .env file and parses environment variables into a [Config].
func Load(envFiles ...string) (*Config, error) {

	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read env file: %w", err)
	}

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWTAccessSecret) < minSecretLength || len(c.JWTRefreshSecret) < minSecretLength {
		return fmt.Errorf("config: JWT secrets must be at least %d bytes", minSecretLength)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("config: LOCKOUT_THRESHOLD must be positive")
	}
	if c.LockoutDuration <= 0 {
		return errors.New("config: LOCKOUT_DURATION must be positive")
	}
	switch c.RateLimitBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ExposeErrors reports whether internal error causes may be returned to clients.
func (c *Config) ExposeErrors() bool {
	return c.Debug && !c.IsProduction()
}

// Origins returns the CORS allow-list.
func (c *Config) Origins() []string {
	return c.AllowedOrigins
}
