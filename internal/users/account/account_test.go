// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/ctxutil"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/users/account"
	"github.com/taibuivan/sugarmill/internal/users/auth"
	"github.com/taibuivan/sugarmill/pkg/pointer"
)

// # Fakes

const (
	aliceID = "01920000-0000-7000-8000-000000000001"
	daveID  = "01920000-0000-7000-8000-000000000002"
	rootID  = "01920000-0000-7000-8000-000000000003"
)

type memoryAccounts struct {
	mu         sync.Mutex
	principals map[string]*auth.Principal
}

func (store *memoryAccounts) FindByID(_ context.Context, id string) (*auth.Principal, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	principal, ok := store.principals[id]
	if !ok {
		return nil, apperr.NotFound("Principal")
	}
	clone := *principal
	return &clone, nil
}

func (store *memoryAccounts) UpdateProfile(_ context.Context, id string, changes account.ProfileChanges, now time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	principal, ok := store.principals[id]
	if !ok {
		return apperr.NotFound("Principal")
	}
	if changes.MobileNumber != nil {
		for otherID, other := range store.principals {
			if otherID != id && other.MobileNumber == *changes.MobileNumber {
				return apperr.DuplicateIdentity("Mobile number is already registered")
			}
		}
		principal.MobileNumber = *changes.MobileNumber
	}
	if changes.Name != nil {
		principal.Name = *changes.Name
	}
	principal.UpdatedAt = now
	return nil
}

func (store *memoryAccounts) Suspend(_ context.Context, id string, now time.Time) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	principal, ok := store.principals[id]
	if !ok || principal.Status != auth.StatusActive {
		return false, nil
	}
	principal.Status = auth.StatusSuspended
	principal.RefreshTokenHash = ""
	principal.UpdatedAt = now
	return true, nil
}

type recordingNotifier struct {
	decisions []events.AccountDecision
	fail      bool
}

func (notifier *recordingNotifier) PublishAccountDecision(_ context.Context, event events.AccountDecision) error {
	notifier.decisions = append(notifier.decisions, event)
	if notifier.fail {
		return errors.New("broker down")
	}
	return nil
}

func (notifier *recordingNotifier) PublishEmailToken(context.Context, events.EmailToken) error {
	return nil
}

func newFixture() (*memoryAccounts, *recordingNotifier, *account.Service) {
	store := &memoryAccounts{principals: map[string]*auth.Principal{
		aliceID: {ID: aliceID, Name: "Alice", Email: "alice@example.com", MobileNumber: "+84901234567", Grant: sec.FarmerGrant(), Status: auth.StatusActive, RefreshTokenHash: "abc"},
		daveID:  {ID: daveID, Name: "Dave", Email: "dave@example.com", MobileNumber: "+84903333333", Grant: sec.FarmerGrant(), Status: auth.StatusPending},
		rootID:  {ID: rootID, Name: "Root", Email: "admin@example.com", Grant: sec.AdminGrant(), Status: auth.StatusActive},
	}}
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }

	service := account.NewService(store, store, notifier, logger).WithClock(clock)
	return store, notifier, service
}

// # Service

/*
TestService_UpdateProfile verifies partial updates and uniqueness of the mobile number.
*/
func TestService_UpdateProfile(t *testing.T) {
	store, _, service := newFixture()
	ctx := context.Background()

	name := pointer.To("  Alice Nguyen ")
	updated, err := service.UpdateProfile(ctx, aliceID, account.ProfileChanges{Name: name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Nguyen", updated.Name)
	assert.Equal(t, "+84901234567", updated.MobileNumber)

	_, err = service.UpdateProfile(ctx, aliceID, account.ProfileChanges{MobileNumber: pointer.To("+84903333333")})
	assert.True(t, apperr.HasCode(err, apperr.CodeDuplicateIdentity))
	assert.Equal(t, "+84901234567", store.principals[aliceID].MobileNumber)

	_, err = service.UpdateProfile(ctx, aliceID, account.ProfileChanges{})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = service.UpdateProfile(ctx, "missing", account.ProfileChanges{Name: name})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestService_Suspend covers the transition, its guards and the published decision.
*/
func TestService_Suspend(t *testing.T) {
	store, notifier, service := newFixture()
	ctx := context.Background()

	suspended, err := service.Suspend(ctx, aliceID, rootID, " Repeated fraud ")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusSuspended, suspended.Status)
	assert.Empty(t, store.principals[aliceID].RefreshTokenHash)

	require.Len(t, notifier.decisions, 1)
	assert.Equal(t, events.DecisionSuspended, notifier.decisions[0].Decision)
	assert.Equal(t, "Repeated fraud", notifier.decisions[0].Reason)
	assert.Equal(t, rootID, notifier.decisions[0].DecidedBy)

	_, err = service.Suspend(ctx, aliceID, rootID, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "already suspended")

	_, err = service.Suspend(ctx, daveID, rootID, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "pending")

	_, err = service.Suspend(ctx, rootID, rootID, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "self")

	_, err = service.Suspend(ctx, "missing", rootID, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestService_Suspend_NotifierFailure verifies a broker failure does not undo the suspension.
*/
func TestService_Suspend_NotifierFailure(t *testing.T) {
	store, notifier, service := newFixture()
	notifier.fail = true

	_, err := service.Suspend(context.Background(), aliceID, rootID, "")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusSuspended, store.principals[aliceID].Status)
}

// # HTTP

// identityGate attaches the identity named by the X-Test-Principal header.
func identityGate(store *memoryAccounts) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal, err := store.FindByID(request.Context(), request.Header.Get("X-Test-Principal"))
			if err != nil {
				writer.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := ctxutil.WithIdentity(request.Context(), principal.Identity())
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

func serve(t *testing.T, router http.Handler, method, path, principalID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	request := httptest.NewRequest(method, path, &payload)
	request.Header.Set("X-Test-Principal", principalID)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	var decoded map[string]any
	_ = json.Unmarshal(recorder.Body.Bytes(), &decoded)
	return recorder, decoded
}

/*
TestHandler_Routes verifies profile access, the owner-or-admin guard and admin suspension.
*/
func TestHandler_Routes(t *testing.T) {
	store, _, service := newFixture()
	router := chi.NewRouter()
	router.Mount("/api/v1/account", account.NewHandler(service, identityGate(store)).Routes())

	tests := []struct {
		name      string
		method    string
		path      string
		principal string
		body      any
		status    int
		code      string
	}{
		{"OwnProfile", http.MethodGet, "/api/v1/account/profile", aliceID, nil, http.StatusOK, ""},
		{"UpdateProfile", http.MethodPatch, "/api/v1/account/profile", aliceID, map[string]string{"name": "Alice N"}, http.StatusOK, ""},
		{"UpdateInvalidMobile", http.MethodPatch, "/api/v1/account/profile", aliceID, map[string]string{"mobileNumber": "12"}, http.StatusBadRequest, apperr.CodeValidation},
		{"OwnerLookup", http.MethodGet, "/api/v1/account/" + aliceID, aliceID, nil, http.StatusOK, ""},
		{"ForeignLookup", http.MethodGet, "/api/v1/account/" + rootID, aliceID, nil, http.StatusForbidden, apperr.CodeForbidden},
		{"AdminLookup", http.MethodGet, "/api/v1/account/" + aliceID, rootID, nil, http.StatusOK, ""},
		{"FarmerSuspend", http.MethodPost, "/api/v1/account/" + aliceID + "/suspend", aliceID, nil, http.StatusForbidden, apperr.CodeForbidden},
		{"AdminSuspend", http.MethodPost, "/api/v1/account/" + aliceID + "/suspend", rootID, map[string]string{"reason": "fraud"}, http.StatusOK, ""},
		{"MalformedLookup", http.MethodGet, "/api/v1/account/abc", rootID, nil, http.StatusNotFound, apperr.CodeNotFound},
		{"MalformedSuspend", http.MethodPost, "/api/v1/account/abc/suspend", rootID, nil, http.StatusNotFound, apperr.CodeNotFound},
		{"AdminSuspendAgain", http.MethodPost, "/api/v1/account/" + aliceID + "/suspend", rootID, nil, http.StatusBadRequest, apperr.CodeInvalidTransition},
		{"Anonymous", http.MethodGet, "/api/v1/account/profile", "", nil, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, body := serve(t, router, tt.method, tt.path, tt.principal, tt.body)
			assert.Equal(t, tt.status, recorder.Code, recorder.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}

	assert.Equal(t, "Alice N", store.principals[aliceID].Name)
	assert.Equal(t, auth.StatusSuspended, store.principals[aliceID].Status)
}
