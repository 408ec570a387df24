// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sugarmill/internal/platform/redis"
)

/*
TestNewClient verifies a reachable server yields a working client and a dead one fails the ping.
*/
func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := miniredis.RunT(t)

	client, err := redis.NewClient(context.Background(), "redis://"+server.Addr()+"/0", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "probe", "1", time.Minute).Err())
	assert.True(t, server.Exists("probe"))

	server.Close()
	assert.Error(t, redis.Ping(context.Background(), client))
}

/*
TestParseOptions verifies URL parsing and tuning.
*/
func TestParseOptions(t *testing.T) {
	options, err := redis.ParseOptions("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6380", options.Addr)
	assert.Equal(t, 2, options.DB)
	assert.Equal(t, "secret", options.Password)
	assert.Equal(t, 10, options.PoolSize)
	assert.Equal(t, 2*time.Second, options.ReadTimeout)

	_, err = redis.ParseOptions("http://not-redis")
	assert.Error(t, err)
}
