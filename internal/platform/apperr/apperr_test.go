// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
)

/*
TestConstructors verifies every kind maps to its fixed status and stable code.
*/
func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *apperr.AppError
		status int
		code   string
	}{
		{"validation", apperr.ValidationError("bad"), http.StatusBadRequest, apperr.CodeValidation},
		{"duplicate", apperr.DuplicateIdentity("taken"), http.StatusBadRequest, apperr.CodeDuplicateIdentity},
		{"unauthorized", apperr.Unauthorized("no"), http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"expired", apperr.TokenExpired(), http.StatusUnauthorized, apperr.CodeTokenExpired},
		{"invalid token", apperr.TokenInvalid("bad"), http.StatusUnauthorized, apperr.CodeTokenInvalid},
		{"credentials", apperr.InvalidCredentials(), http.StatusUnauthorized, apperr.CodeInvalidCredentials},
		{"role mismatch", apperr.Mismatch(apperr.CodeRoleMismatch, "role"), http.StatusUnauthorized, apperr.CodeRoleMismatch},
		{"locked", apperr.AccountLocked(), http.StatusLocked, apperr.CodeAccountLocked},
		{"pending", apperr.AccountNotActive("pending"), http.StatusForbidden, apperr.CodePendingApproval},
		{"suspended", apperr.AccountNotActive("suspended"), http.StatusForbidden, apperr.CodeAccountSuspended},
		{"rejected", apperr.AccountNotActive("rejected"), http.StatusForbidden, apperr.CodeAccountRejected},
		{"other status", apperr.AccountNotActive("archived"), http.StatusForbidden, apperr.CodeAccountNotActive},
		{"forbidden", apperr.Forbidden("no"), http.StatusForbidden, apperr.CodeForbidden},
		{"email", apperr.EmailNotVerified(), http.StatusForbidden, apperr.CodeEmailNotVerified},
		{"not found", apperr.NotFound("Principal"), http.StatusNotFound, apperr.CodeNotFound},
		{"transition", apperr.InvalidTransition("no"), http.StatusBadRequest, apperr.CodeInvalidTransition},
		{"rate limited", apperr.RateLimited(3), http.StatusTooManyRequests, apperr.CodeRateLimited},
		{"internal", apperr.Internal(errors.New("boom")), http.StatusInternalServerError, apperr.CodeInternal},
		{"unavailable", apperr.ServiceUnavailable("down"), http.StatusServiceUnavailable, apperr.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

/*
TestAccountLocked_HidesUnlockTime verifies the lock message never carries a timestamp.
*/
func TestAccountLocked_HidesUnlockTime(t *testing.T) {
	err := apperr.AccountLocked()
	assert.NotContains(t, err.Message, ":")
	assert.Empty(t, err.Details)
}

/*
TestHasCode verifies codes are found through wrapping and causes stay reachable.
*/
func TestHasCode(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("auth_service_login_failed: %w", apperr.Internal(cause))

	assert.True(t, apperr.HasCode(wrapped, apperr.CodeInternal))
	assert.False(t, apperr.HasCode(wrapped, apperr.CodeNotFound))
	assert.False(t, apperr.HasCode(cause, apperr.CodeInternal))
	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, apperr.IsAppError(wrapped))
	assert.Nil(t, apperr.As(cause))
}

/*
TestWithCause verifies the original error is not mutated.
*/
func TestWithCause(t *testing.T) {
	base := apperr.NotFound("Principal")
	withCause := base.WithCause(errors.New("no rows"))

	assert.Nil(t, base.Cause)
	assert.EqualError(t, withCause.Cause, "no rows")
	assert.Equal(t, base.Code, withCause.Code)
}

/*
TestInsufficientRole verifies the required roles and actual role are named in details.
*/
func TestInsufficientRole(t *testing.T) {
	err := apperr.InsufficientRole([]string{"admin", "staff"}, "farmer")

	assert.Equal(t, apperr.CodeForbidden, err.Code)
	assert.Equal(t, []apperr.FieldError{
		{Field: "required_roles", Message: "admin,staff"},
		{Field: "role", Message: "farmer"},
	}, err.Details)
}
