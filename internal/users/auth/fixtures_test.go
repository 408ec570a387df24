// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/users/auth"
	"github.com/taibuivan/sugarmill/pkg/pagination"
)

// # In-memory Credential Store

// memoryStore mirrors the Postgres store semantics: copies in and out, hash
// hidden from default reads, unique email and mobile number.
type memoryStore struct {
	mu         sync.Mutex
	principals map[string]*auth.Principal
	policy     auth.LockoutPolicy

	// beforeConditional, when set, runs once ahead of the next status-guarded write.
	beforeConditional func(id string)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{principals: make(map[string]*auth.Principal), policy: auth.DefaultLockoutPolicy()}
}

func clonePrincipal(principal *auth.Principal, withSecret bool) *auth.Principal {
	clone := *principal
	if !withSecret {
		clone.PasswordHash = ""
	}
	return &clone
}

func (store *memoryStore) findByEmail(email string) *auth.Principal {
	for _, principal := range store.principals {
		if principal.Email == email {
			return principal
		}
	}
	return nil
}

func (store *memoryStore) FindByEmail(_ context.Context, email string) (*auth.Principal, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if principal := store.findByEmail(email); principal != nil {
		return clonePrincipal(principal, false), nil
	}
	return nil, apperr.NotFound("Principal")
}

func (store *memoryStore) FindByEmailWithSecret(_ context.Context, email string) (*auth.Principal, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if principal := store.findByEmail(email); principal != nil {
		return clonePrincipal(principal, true), nil
	}
	return nil, apperr.NotFound("Principal")
}

func (store *memoryStore) FindByID(_ context.Context, id string) (*auth.Principal, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if principal, ok := store.principals[id]; ok {
		return clonePrincipal(principal, false), nil
	}
	return nil, apperr.NotFound("Principal")
}

func (store *memoryStore) Create(_ context.Context, principal *auth.Principal) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.principals {
		if existing.Email == principal.Email {
			return apperr.DuplicateIdentity("Email is already registered")
		}
		if principal.MobileNumber != "" && existing.MobileNumber == principal.MobileNumber {
			return apperr.DuplicateIdentity("Mobile number is already registered")
		}
	}
	store.principals[principal.ID] = clonePrincipal(principal, true)
	return nil
}

func (store *memoryStore) RotateRefreshToken(_ context.Context, id, hash string, loginAt *time.Time, now time.Time) (bool, error) {
	store.interleave(id)
	store.mu.Lock()
	defer store.mu.Unlock()
	existing, ok := store.principals[id]
	if !ok || existing.Status != auth.StatusActive {
		return false, nil
	}
	existing.RefreshTokenHash = hash
	if loginAt != nil {
		store.policy.RegisterSuccess(existing)
		at := *loginAt
		existing.LastLoginAt = &at
	}
	existing.UpdatedAt = now
	return true, nil
}

func (store *memoryStore) ClearRefreshToken(_ context.Context, id string, now time.Time) error {
	return store.update(id, func(existing *auth.Principal) {
		existing.RefreshTokenHash = ""
		existing.UpdatedAt = now
	})
}

func (store *memoryStore) MarkEmailVerified(_ context.Context, id string, now time.Time) error {
	return store.update(id, func(existing *auth.Principal) {
		existing.IsEmailVerified = true
		existing.UpdatedAt = now
	})
}

func (store *memoryStore) Decide(_ context.Context, id string, decision auth.Decision) (bool, error) {
	store.interleave(id)
	store.mu.Lock()
	defer store.mu.Unlock()
	existing, ok := store.principals[id]
	if !ok || existing.Status != auth.StatusPending {
		return false, nil
	}
	existing.Status = decision.Status
	existing.ApprovedBy = decision.ApprovedBy
	existing.ApprovalDate = decision.ApprovalDate
	existing.RejectionReason = decision.RejectionReason
	existing.UpdatedAt = decision.DecidedAt
	return true, nil
}

func (store *memoryStore) UpdatePassword(_ context.Context, id, hash string, now time.Time) error {
	return store.update(id, func(existing *auth.Principal) {
		existing.PasswordHash = hash
		existing.RefreshTokenHash = ""
		store.policy.RegisterSuccess(existing)
		existing.UpdatedAt = now
	})
}

func (store *memoryStore) update(id string, apply func(*auth.Principal)) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	existing, ok := store.principals[id]
	if !ok {
		return apperr.NotFound("Principal")
	}
	apply(existing)
	return nil
}

// interleave runs the one-shot hook that simulates a concurrent writer
// landing just before a conditional update.
func (store *memoryStore) interleave(id string) {
	store.mu.Lock()
	hook := store.beforeConditional
	store.beforeConditional = nil
	store.mu.Unlock()
	if hook != nil {
		hook(id)
	}
}

// setStatus changes the stored status the way an administrator action elsewhere would.
func (store *memoryStore) setStatus(id string, status auth.Status) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.principals[id].Status = status
}

func (store *memoryStore) RecordFailedLogin(_ context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (*auth.Principal, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	existing, ok := store.principals[id]
	if !ok {
		return nil, apperr.NotFound("Principal")
	}
	auth.LockoutPolicy{Threshold: threshold, Duration: lockFor}.RegisterFailure(existing, now)
	return clonePrincipal(existing, false), nil
}

func (store *memoryStore) ListPending(_ context.Context, role *sec.Role, page pagination.Params) ([]*auth.Principal, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var matched []*auth.Principal
	for _, principal := range store.principals {
		if principal.Status != auth.StatusPending {
			continue
		}
		if role != nil && principal.Grant.Role() != *role {
			continue
		}
		matched = append(matched, clonePrincipal(principal, false))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

// raw returns the stored record, hash included, for assertions.
func (store *memoryStore) raw(id string) *auth.Principal {
	store.mu.Lock()
	defer store.mu.Unlock()
	return clonePrincipal(store.principals[id], true)
}

// # Recording Notifier

type recordingNotifier struct {
	mu        sync.Mutex
	decisions []events.AccountDecision
	tokens    []events.EmailToken
}

func (notifier *recordingNotifier) PublishAccountDecision(_ context.Context, event events.AccountDecision) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.decisions = append(notifier.decisions, event)
	return nil
}

func (notifier *recordingNotifier) PublishEmailToken(_ context.Context, event events.EmailToken) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.tokens = append(notifier.tokens, event)
	return nil
}

// lastToken returns the most recent raw token published for principalID and purpose.
func (notifier *recordingNotifier) lastToken(t *testing.T, principalID string, purpose events.TokenPurpose) string {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for i := len(notifier.tokens) - 1; i >= 0; i-- {
		event := notifier.tokens[i]
		if event.PrincipalID == principalID && event.Purpose == purpose {
			return event.Token
		}
	}
	t.Fatalf("no %s token published for %s", purpose, principalID)
	return ""
}

// # Fake Clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(step time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(step)
}

// # Harness

type harness struct {
	service  *auth.Service
	store    *memoryStore
	notifier *recordingNotifier
	clock    *fakeClock
	tokens   *sec.TokenService
	redis    *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests-0123456789"),
		RefreshSecret: []byte("refresh-secret-for-tests-0123456789"),
		Issuer:        "sugarmill",
		Audience:      "sugarmill-api",
		AccessTTL:     auth.AccessTokenTTL,
		RefreshTTL:    auth.RefreshTokenTTL,
		Now:           clock.Now,
	})
	require.NoError(t, err)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemoryStore()
	notifier := &recordingNotifier{}

	service := auth.NewService(auth.Dependencies{
		Store:              store,
		VerificationTokens: auth.NewVerificationTokenRepository(client),
		ResetTokens:        auth.NewResetTokenRepository(client),
		Tokens:             tokens,
		Hasher:             sec.NewPasswordHasher(4),
		Notifier:           notifier,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:              clock.Now,
	})

	return &harness{service: service, store: store, notifier: notifier, clock: clock, tokens: tokens, redis: server}
}

// register enrolls a principal and returns it.
func (h *harness) register(t *testing.T, input auth.RegisterInput) *auth.Principal {
	t.Helper()
	principal, err := h.service.Register(context.Background(), input)
	require.NoError(t, err)
	return principal
}

// activate registers and approves a principal.
func (h *harness) activate(t *testing.T, input auth.RegisterInput) *auth.Principal {
	t.Helper()
	principal := h.register(t, input)
	approved, err := h.service.Approve(context.Background(), principal.ID, "admin-1")
	require.NoError(t, err)
	return approved
}

func farmerInput(name, email, mobile string) auth.RegisterInput {
	return auth.RegisterInput{
		Name:         name,
		Email:        email,
		Password:     "Str0ngPass!",
		MobileNumber: mobile,
		Role:         string(sec.RoleFarmer),
	}
}

func staffInput(name, email, mobile, department string) auth.RegisterInput {
	return auth.RegisterInput{
		Name:         name,
		Email:        email,
		Password:     "Str0ngPass!",
		MobileNumber: mobile,
		Role:         string(sec.RoleStaff),
		Department:   department,
	}
}
