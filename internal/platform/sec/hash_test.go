// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/sugarmill/internal/platform/sec"
)

/*
TestPasswordHasher_RoundTrip verifies that a hash accepts its own password only.
*/
func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := sec.NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)

	assert.True(t, hasher.Verify("Passw0rd!", hash))
	assert.False(t, hasher.Verify("passw0rd!", hash))
}

/*
TestPasswordHasher_Salted verifies that hashing twice never yields the same output.
*/
func TestPasswordHasher_Salted(t *testing.T) {
	hasher := sec.NewPasswordHasher(bcrypt.MinCost)

	first, err := hasher.Hash("same-secret")
	require.NoError(t, err)
	second, err := hasher.Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

/*
TestPasswordHasher_VerifyIdempotent checks repeated verification is stable.
*/
func TestPasswordHasher_VerifyIdempotent(t *testing.T) {
	hasher := sec.NewPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("Passw0rd!")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, hasher.Verify("Passw0rd!", hash))
		assert.False(t, hasher.Verify("wrong", hash))
	}
}

/*
TestPasswordHasher_Edges covers empty and oversized input and malformed hashes.
*/
func TestPasswordHasher_Edges(t *testing.T) {
	hasher := sec.NewPasswordHasher(0)

	_, err := hasher.Hash("")
	assert.ErrorIs(t, err, sec.ErrEmptyPassword)

	_, err = hasher.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, sec.ErrPasswordTooLong)

	assert.False(t, hasher.Verify("anything", "not-a-bcrypt-hash"))
	assert.False(t, hasher.Verify("anything", ""))
}
