// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/migration"
	"github.com/taibuivan/sugarmill/internal/platform/postgres"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/users/auth"
	"github.com/taibuivan/sugarmill/pkg/pagination"
	"github.com/taibuivan/sugarmill/pkg/uuid"
)

// # Postgres Integration
//
// These tests run only when DATABASE_URL names a disposable database. The
// users.principal table is truncated before each test.

func newPostgresStore(t *testing.T) (*auth.PostgresCredentialStore, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.NewRunner(dsn, "../../../data/migrations", logger).Up())

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, postgres.DefaultPoolSettings(), logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE users.principal`)
	require.NoError(t, err)

	return auth.NewCredentialStore(pool), pool
}

// seedPrincipal inserts a principal with the given grant and status.
func seedPrincipal(t *testing.T, store *auth.PostgresCredentialStore, email, mobile string, grant sec.Grant, status auth.Status, createdAt time.Time) *auth.Principal {
	t.Helper()
	principal := &auth.Principal{
		ID:           uuid.New(),
		Name:         "Seed",
		Email:        email,
		MobileNumber: mobile,
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplaceho",
		Grant:        grant,
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, store.Create(context.Background(), principal))
	return principal
}

/*
TestPostgresStore_RecordFailedLogin verifies the threshold, the pin at the
threshold and the restart after a stale lock.
*/
func TestPostgresStore_RecordFailedLogin(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	policy := auth.DefaultLockoutPolicy()

	bob := seedPrincipal(t, store, "bob@example.com", "+84901111111", sec.FarmerGrant(), auth.StatusActive, now)

	for i := 1; i <= 4; i++ {
		updated, err := store.RecordFailedLogin(ctx, bob.ID, policy.Threshold, policy.Duration, now)
		require.NoError(t, err)
		assert.Equal(t, i, updated.FailedAttempts)
		assert.Nil(t, updated.LockedUntil)
	}

	updated, err := store.RecordFailedLogin(ctx, bob.ID, policy.Threshold, policy.Duration, now)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.FailedAttempts)
	require.NotNil(t, updated.LockedUntil)
	assert.WithinDuration(t, now.Add(policy.Duration), *updated.LockedUntil, time.Millisecond)

	updated, err = store.RecordFailedLogin(ctx, bob.ID, policy.Threshold, policy.Duration, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 5, updated.FailedAttempts, "counter stays at the threshold")
	assert.True(t, policy.IsLocked(updated, now.Add(time.Minute)))

	later := now.Add(policy.Duration + time.Hour)
	updated, err = store.RecordFailedLogin(ctx, bob.ID, policy.Threshold, policy.Duration, later)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FailedAttempts, "a stale lock restarts counting")
	assert.Nil(t, updated.LockedUntil)

	_, err = store.RecordFailedLogin(ctx, uuid.New(), policy.Threshold, policy.Duration, now)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestPostgresStore_ListPending verifies the role filter, the total and newest-first ordering.
*/
func TestPostgresStore_ListPending(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	older := seedPrincipal(t, store, "one@example.com", "+84900000001", sec.FarmerGrant(), auth.StatusPending, base)
	newer := seedPrincipal(t, store, "two@example.com", "+84900000002", sec.FarmerGrant(), auth.StatusPending, base.Add(time.Minute))
	seedPrincipal(t, store, "three@example.com", "+84900000003", sec.StaffGrant(sec.DepartmentSupport), auth.StatusPending, base.Add(2*time.Minute))
	seedPrincipal(t, store, "four@example.com", "+84900000004", sec.FarmerGrant(), auth.StatusActive, base.Add(3*time.Minute))

	farmer := sec.RoleFarmer
	principals, total, err := store.ListPending(ctx, &farmer, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, principals, 2)
	assert.Equal(t, newer.ID, principals[0].ID)
	assert.Equal(t, older.ID, principals[1].ID)
	assert.Empty(t, principals[0].PasswordHash)

	principals, total, err = store.ListPending(ctx, nil, pagination.Params{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, principals, 1)
	assert.Equal(t, sec.RoleStaff, principals[0].Grant.Role())
}

/*
TestPostgresStore_NotFound verifies unknown and malformed ids are reported as NotFound.
*/
func TestPostgresStore_NotFound(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{uuid.New(), "abc"} {
		_, err := store.FindByID(ctx, id)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound), id)

		err = store.ClearRefreshToken(ctx, id, now)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound), id)

		rotated, err := store.RotateRefreshToken(ctx, id, "hash", nil, now)
		require.NoError(t, err)
		assert.False(t, rotated)
	}

	_, err := store.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestPostgresStore_ConditionalWrites verifies status-guarded writes never override
a transition that landed first.
*/
func TestPostgresStore_ConditionalWrites(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	admin := seedPrincipal(t, store, "admin@example.com", "", sec.AdminGrant(), auth.StatusActive, now)
	active := seedPrincipal(t, store, "alice@example.com", "+84901234567", sec.FarmerGrant(), auth.StatusActive, now)
	pending := seedPrincipal(t, store, "dave@example.com", "+84903333333", sec.FarmerGrant(), auth.StatusPending, now)

	t.Run("RotateAfterSuspension", func(t *testing.T) {
		rotated, err := store.RotateRefreshToken(ctx, active.ID, "first", &now, now)
		require.NoError(t, err)
		require.True(t, rotated)

		_, err = pool.Exec(ctx, `UPDATE users.principal SET status = 'suspended', refreshtokenhash = NULL WHERE id = $1`, active.ID)
		require.NoError(t, err)

		rotated, err = store.RotateRefreshToken(ctx, active.ID, "second", &now, now)
		require.NoError(t, err)
		assert.False(t, rotated)

		stored, err := store.FindByID(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusSuspended, stored.Status)
		assert.Empty(t, stored.RefreshTokenHash)
	})

	t.Run("DecideOnce", func(t *testing.T) {
		approvedBy := admin.ID
		applied, err := store.Decide(ctx, pending.ID, auth.Decision{
			Status: auth.StatusActive, ApprovedBy: &approvedBy, ApprovalDate: &now, DecidedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, applied)

		reason := "Too late"
		applied, err = store.Decide(ctx, pending.ID, auth.Decision{
			Status: auth.StatusRejected, RejectionReason: &reason, DecidedAt: now,
		})
		require.NoError(t, err)
		assert.False(t, applied)

		stored, err := store.FindByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusActive, stored.Status)
		require.NotNil(t, stored.ApprovedBy)
		assert.Equal(t, admin.ID, *stored.ApprovedBy)
		assert.Nil(t, stored.RejectionReason)
	})

	t.Run("UpdatePasswordEndsSessions", func(t *testing.T) {
		policy := auth.DefaultLockoutPolicy()
		for range policy.Threshold {
			_, err := store.RecordFailedLogin(ctx, admin.ID, policy.Threshold, policy.Duration, now)
			require.NoError(t, err)
		}
		rotated, err := store.RotateRefreshToken(ctx, admin.ID, "live", nil, now)
		require.NoError(t, err)
		require.True(t, rotated)

		require.NoError(t, store.UpdatePassword(ctx, admin.ID, "$2a$04$replaced", now))

		stored, err := store.FindByEmailWithSecret(ctx, "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, "$2a$04$replaced", stored.PasswordHash)
		assert.Empty(t, stored.RefreshTokenHash)
		assert.Zero(t, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})
}
