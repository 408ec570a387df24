// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sugarmill/internal/users/auth"
)

/*
TestLockoutPolicy_Threshold verifies the lock engages exactly at the threshold.
*/
func TestLockoutPolicy_Threshold(t *testing.T) {
	policy := auth.DefaultLockoutPolicy()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	principal := &auth.Principal{}

	for i := 1; i < policy.Threshold; i++ {
		policy.RegisterFailure(principal, now)
		assert.Equal(t, i, principal.FailedAttempts)
		assert.False(t, policy.IsLocked(principal, now))
	}

	policy.RegisterFailure(principal, now)
	assert.Equal(t, policy.Threshold, principal.FailedAttempts)
	require.NotNil(t, principal.LockedUntil)
	assert.Equal(t, now.Add(2*time.Hour), *principal.LockedUntil)
	assert.True(t, policy.IsLocked(principal, now.Add(time.Hour)))
}

/*
TestLockoutPolicy_Expiry verifies an expired lock reads as unlocked and counting restarts.
*/
func TestLockoutPolicy_Expiry(t *testing.T) {
	policy := auth.LockoutPolicy{Threshold: 2, Duration: time.Minute}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	principal := &auth.Principal{}

	policy.RegisterFailure(principal, now)
	policy.RegisterFailure(principal, now)
	require.True(t, policy.IsLocked(principal, now))

	later := now.Add(time.Minute)
	assert.False(t, policy.IsLocked(principal, later), "lock ends at LockedUntil")
	assert.NotNil(t, principal.LockedUntil, "IsLocked never mutates")

	policy.RegisterFailure(principal, later)
	assert.Equal(t, 1, principal.FailedAttempts)
	assert.Nil(t, principal.LockedUntil)
}

/*
TestLockoutPolicy_ClearIfStale verifies only past locks are cleared.
*/
func TestLockoutPolicy_ClearIfStale(t *testing.T) {
	policy := auth.DefaultLockoutPolicy()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	future := now.Add(time.Minute)
	active := &auth.Principal{FailedAttempts: 5, LockedUntil: &future}
	assert.False(t, policy.ClearIfStale(active, now))
	assert.Equal(t, 5, active.FailedAttempts)

	past := now.Add(-time.Minute)
	stale := &auth.Principal{FailedAttempts: 5, LockedUntil: &past}
	assert.True(t, policy.ClearIfStale(stale, now))
	assert.Zero(t, stale.FailedAttempts)
	assert.Nil(t, stale.LockedUntil)

	assert.False(t, policy.ClearIfStale(&auth.Principal{FailedAttempts: 3}, now))
}

/*
TestLockoutPolicy_RegisterSuccess verifies success resets everything.
*/
func TestLockoutPolicy_RegisterSuccess(t *testing.T) {
	policy := auth.DefaultLockoutPolicy()
	until := time.Now().Add(time.Hour)
	principal := &auth.Principal{FailedAttempts: 4, LockedUntil: &until}

	policy.RegisterSuccess(principal)
	assert.Zero(t, principal.FailedAttempts)
	assert.Nil(t, principal.LockedUntil)
}

/*
TestNormalizeEmail verifies case folding, trimming and NFKC normalization.
*/
func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Lowercase", "alice@mill.test", "alice@mill.test"},
		{"MixedCase", "  Alice@Mill.TEST ", "alice@mill.test"},
		{"FullWidth", "ａｌｉｃｅ@mill.test", "alice@mill.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.NormalizeEmail(tt.input))
		})
	}
}
