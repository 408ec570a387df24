// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/constants"
)

// RedisTokenRepository implements [TokenRepository] using expiring Redis keys.
type RedisTokenRepository struct {
	client  redis.UniversalClient
	prefix  string
	invalid string
}

// NewVerificationTokenRepository creates the Redis store for email verification tokens.
func NewVerificationTokenRepository(client redis.UniversalClient) *RedisTokenRepository {
	return &RedisTokenRepository{
		client:  client,
		prefix:  constants.RedisPrefixVerifyToken,
		invalid: "Verification token is invalid or expired",
	}
}

// NewResetTokenRepository creates the Redis store for password reset tokens.
func NewResetTokenRepository(client redis.UniversalClient) *RedisTokenRepository {
	return &RedisTokenRepository{
		client:  client,
		prefix:  constants.RedisPrefixResetToken,
		invalid: "Reset token is invalid or expired",
	}
}

/*
Set stores a token hash with its associated principalID and TTL.

Parameters:
  - context: context.Context
  - tokenHash: string
  - principalID: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisTokenRepository) Set(context context.Context, tokenHash, principalID string, ttl time.Duration) error {
	if err := repository.client.Set(context, repository.prefix+tokenHash, principalID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_token_set_failed: %w", err)
	}
	return nil
}

/*
Consume atomically reads and deletes a token.

Description: GETDEL guarantees a token can be redeemed at most once even under
concurrent requests.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - string: PrincipalID
  - error: apperr.ValidationError if absent or expired, or connectivity errors
*/
func (repository *RedisTokenRepository) Consume(context context.Context, tokenHash string) (string, error) {
	principalID, err := repository.client.GetDel(context, repository.prefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.ValidationError(repository.invalid)
		}
		return "", fmt.Errorf("redis_token_consume_failed: %w", err)
	}
	return principalID, nil
}
