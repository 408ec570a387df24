// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/users/auth"
)

func newMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

/*
TestRedisTokenRepository_SingleUse verifies a token can be consumed exactly once.
*/
func TestRedisTokenRepository_SingleUse(t *testing.T) {
	client, _ := newMiniRedis(t)
	repository := auth.NewVerificationTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, "hash-1", "p-1", time.Hour))

	principalID, err := repository.Consume(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", principalID)

	_, err = repository.Consume(ctx, "hash-1")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

/*
TestRedisTokenRepository_Expiry verifies the TTL is honoured.
*/
func TestRedisTokenRepository_Expiry(t *testing.T) {
	client, server := newMiniRedis(t)
	repository := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, repository.Set(ctx, "hash-2", "p-2", time.Hour))
	assert.True(t, server.Exists("auth:reset_token:hash-2"))

	server.FastForward(time.Hour + time.Second)

	_, err := repository.Consume(ctx, "hash-2")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

/*
TestRedisTokenRepository_Separation verifies verification and reset tokens do not collide.
*/
func TestRedisTokenRepository_Separation(t *testing.T) {
	client, _ := newMiniRedis(t)
	verify := auth.NewVerificationTokenRepository(client)
	reset := auth.NewResetTokenRepository(client)
	ctx := context.Background()

	require.NoError(t, verify.Set(ctx, "same-hash", "p-1", time.Hour))

	_, err := reset.Consume(ctx, "same-hash")
	assert.Error(t, err)

	principalID, err := verify.Consume(ctx, "same-hash")
	require.NoError(t, err)
	assert.Equal(t, "p-1", principalID)
}
