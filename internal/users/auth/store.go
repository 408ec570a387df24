// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/pkg/pagination"
)

// # Credential Data Access

// CredentialStore defines the data access contract for principals.
//
// Default reads exclude the password hash. Missing records are reported as
// apperr.NotFound and unique collisions as apperr.DuplicateIdentity.
type CredentialStore interface {

	/*
		FindByEmail returns the principal registered with email, without its password hash.

		Parameters:
		  - context: context.Context
		  - email: string (normalized)

		Returns:
		  - *Principal: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Principal, error)

	/*
		FindByEmailWithSecret returns the principal including its password hash.

		Description: The only read path that loads the hash. Used by login.

		Parameters:
		  - context: context.Context
		  - email: string (normalized)

		Returns:
		  - *Principal: Hydrated entity with PasswordHash
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByEmailWithSecret(context context.Context, email string) (*Principal, error)

	/*
		FindByID returns the principal with the given ID, without its password hash.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Principal: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*Principal, error)

	/*
		Create persists a brand-new principal, password hash included.

		Parameters:
		  - context: context.Context
		  - principal: *Principal

		Returns:
		  - error: apperr.DuplicateIdentity or persistence failures
	*/
	Create(context context.Context, principal *Principal) error

	/*
		RotateRefreshToken stores a new refresh token hash for an active principal.

		Description: When loginAt is set the same statement also stamps the login and
		clears the lockout counters. The write only applies while the principal is
		active, so a suspension that lands first is never undone.

		Parameters:
		  - context: context.Context
		  - id: string
		  - hash: string
		  - loginAt: *time.Time (nil for a plain rotation)
		  - now: time.Time

		Returns:
		  - bool: False when the principal is missing or no longer active
		  - error: Persistence failures
	*/
	RotateRefreshToken(context context.Context, id, hash string, loginAt *time.Time, now time.Time) (bool, error)

	/*
		ClearRefreshToken empties the refresh slot.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	ClearRefreshToken(context context.Context, id string, now time.Time) error

	/*
		MarkEmailVerified sets the email verification flag.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	MarkEmailVerified(context context.Context, id string, now time.Time) error

	/*
		Decide moves a pending principal to the decided status and writes the approval fields.

		Parameters:
		  - context: context.Context
		  - id: string
		  - decision: Decision

		Returns:
		  - bool: False when the principal is missing or no longer pending
		  - error: Persistence failures
	*/
	Decide(context context.Context, id string, decision Decision) (bool, error)

	/*
		UpdatePassword replaces the password hash and ends every session.

		Description: The refresh slot is emptied and the lockout counters are cleared
		in the same statement.

		Parameters:
		  - context: context.Context
		  - id: string
		  - hash: string
		  - now: time.Time

		Returns:
		  - error: apperr.NotFound or persistence failures
	*/
	UpdatePassword(context context.Context, id, hash string, now time.Time) error

	/*
		RecordFailedLogin atomically applies one failed verification.

		Description: Restarts counting after a stale lock, increments the counter and
		locks the principal for lockFor once threshold is reached, all in one step.

		Parameters:
		  - context: context.Context
		  - id: string
		  - threshold: int
		  - lockFor: time.Duration
		  - now: time.Time

		Returns:
		  - *Principal: State after the update
		  - error: apperr.NotFound or persistence failures
	*/
	RecordFailedLogin(context context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (*Principal, error)

	/*
		ListPending returns pending principals, newest first.

		Parameters:
		  - context: context.Context
		  - role: *sec.Role (optional filter)
		  - page: pagination.Params

		Returns:
		  - []*Principal: One page of principals
		  - int: Total matching principals
		  - error: Retrieval failures
	*/
	ListPending(context context.Context, role *sec.Role, page pagination.Params) ([]*Principal, int, error)
}

// Decision is the outcome of the approval workflow for one pending principal.
type Decision struct {
	Status          Status
	ApprovedBy      *string
	ApprovalDate    *time.Time
	RejectionReason *string
	DecidedAt       time.Time
}

// # Volatile Data Access

// TokenRepository stores single-use email tokens. Tokens are keyed by their hash so
// the raw value never reaches storage.
type TokenRepository interface {

	/*
		Set associates a token hash with a principalID for ttl.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - principalID: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, tokenHash, principalID string, ttl time.Duration) error

	/*
		Consume returns the principalID for tokenHash and deletes it in the same step.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - string: PrincipalID
		  - error: apperr.ValidationError when unknown or expired, or connectivity errors
	*/
	Consume(context context.Context, tokenHash string) (string, error)
}

// # Outbound Notifications

// Notifier announces workflow transitions and issued email tokens to the mailer.
type Notifier interface {
	PublishAccountDecision(ctx context.Context, event events.AccountDecision) error
	PublishEmailToken(ctx context.Context, event events.EmailToken) error
}
