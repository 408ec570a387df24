// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer signs and verifies the access/refresh token pair.
type TokenIssuer interface {
	GenerateAccessToken(principalID, email string, grant sec.Grant) (string, time.Time, error)
	GenerateRefreshToken(principalID, email string) (string, time.Time, error)
	VerifyRefresh(tokenString string) (*sec.Claims, error)
}

// PasswordHasher hashes and verifies stored secrets.
type PasswordHasher interface {
	Hash(plainTextPassword string) (string, error)
	Verify(plainTextPassword, existingHash string) bool
}

// Dependencies groups the collaborators of [Service]. Lockout, Notifier, Logger
// and Clock are optional.
type Dependencies struct {
	Store              CredentialStore
	VerificationTokens TokenRepository
	ResetTokens        TokenRepository
	Tokens             TokenIssuer
	Hasher             PasswordHasher
	Notifier           Notifier
	Lockout            LockoutPolicy
	Logger             *slog.Logger
	Clock              func() time.Time
}

// Service implements the identity use cases of the core.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// token rotation or approval logic must be reviewed by the security team.
type Service struct {
	store              CredentialStore
	verificationTokens TokenRepository
	resetTokens        TokenRepository
	tokens             TokenIssuer
	hasher             PasswordHasher
	notifier           Notifier
	lockout            LockoutPolicy
	logger             *slog.Logger
	clock              func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService constructs a new [Service] and fills optional dependencies with defaults.
func NewService(deps Dependencies) *Service {
	if deps.Lockout.Threshold < 1 || deps.Lockout.Duration <= 0 {
		deps.Lockout = DefaultLockoutPolicy()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = events.NewLogPublisher(deps.Logger)
	}

	return &Service{
		store:              deps.Store,
		verificationTokens: deps.VerificationTokens,
		resetTokens:        deps.ResetTokens,
		tokens:             deps.Tokens,
		hasher:             deps.Hasher,
		notifier:           deps.Notifier,
		lockout:            deps.Lockout,
		logger:             deps.Logger,
		clock:              deps.Clock,
	}
}

// TokenPair is the credential bundle returned by login and refresh.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	TokenType             string    `json:"tokenType"`
	ExpiresIn             int       `json:"expiresIn"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func (service *Service) now() time.Time {
	return service.clock().UTC()
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new principal.
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	MobileNumber string
	Role         string
	Department   string
}

/*
Register validates, hashes, and persists a brand new principal.

Description: The principal always starts pending and unverified. A verification
token is issued and handed to the notifier; a failure there does not undo the
registration.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Principal: Created entity
  - err: ValidationError, DuplicateIdentity or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Principal, error) {

	// The grant is the only place a department can enter the system.
	grant, err := sec.ParseGrant(input.Role, input.Department)
	if err != nil {
		return nil, grantValidationError(err)
	}

	hashedPassword, err := service.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := service.now()
	principal := &Principal{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(input.Name),
		Email:        NormalizeEmail(input.Email),
		MobileNumber: strings.TrimSpace(input.MobileNumber),
		PasswordHash: hashedPassword,
		Grant:        grant,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := service.store.Create(context, principal); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	service.logger.InfoContext(context, "principal_registered",
		slog.String("principal_id", principal.ID),
		slog.String("grant", grant.String()),
	)

	if err := service.issueVerificationToken(context, principal); err != nil {
		service.logger.WarnContext(context, "verification_token_not_issued",
			slog.String("principal_id", principal.ID),
			slog.String("error", err.Error()),
		)
	}

	return principal, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt. Role and
// Department are optional hints checked against the account.
type LoginInput struct {
	Email      string
	Password   string
	Role       string
	Department string
}

// LoginResult is a successfully established session.
type LoginResult struct {
	Tokens    *TokenPair
	Principal *Principal
}

/*
Login validates credentials and issues a fresh token pair.

Description: Unknown emails and wrong passwords produce the same error. The
lockout check runs before the password is verified, so a locked account refuses
even the correct password. Counters are reset only after every check passed.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Token pair and principal
  - err: InvalidCredentials, AccountLocked, AccountNotActive, role/department mismatch
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(input.Email)

	principal, err := service.store.FindByEmailWithSecret(context, email)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			// Spend the same bcrypt time as a real verification.
			service.hasher.Verify(input.Password, service.placeholderHash())
			service.logger.InfoContext(context, "login_failed", slog.String("reason", "unknown_email"))
			return nil, apperr.InvalidCredentials()
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	now := service.now()

	// A lock that has already expired counts as no lock.
	service.lockout.ClearIfStale(principal, now)

	if service.lockout.IsLocked(principal, now) {
		service.logger.WarnContext(context, "login_refused_locked", slog.String("principal_id", principal.ID))
		return nil, apperr.AccountLocked()
	}

	if !service.hasher.Verify(input.Password, principal.PasswordHash) {
		return nil, service.recordFailure(context, principal.ID, now)
	}

	if principal.Status != StatusActive {
		service.logger.InfoContext(context, "login_refused_status",
			slog.String("principal_id", principal.ID),
			slog.String("status", string(principal.Status)),
		)
		return nil, apperr.AccountNotActive(string(principal.Status))
	}

	if err := checkLoginHints(principal, input); err != nil {
		return nil, err
	}

	// Success: clear counters, stamp the login and rotate the refresh slot in one write.
	tokens, err := service.issuePair(context, principal, &now)
	if err != nil {
		return nil, err
	}

	service.lockout.RegisterSuccess(principal)
	principal.LastLoginAt = &now

	service.logger.InfoContext(context, "login_succeeded", slog.String("principal_id", principal.ID))

	return &LoginResult{Tokens: tokens, Principal: principal}, nil
}

// recordFailure applies one failed verification and picks the resulting error.
func (service *Service) recordFailure(context context.Context, principalID string, now time.Time) error {
	updated, err := service.store.RecordFailedLogin(context, principalID, service.lockout.Threshold, service.lockout.Duration, now)
	if err != nil {
		return fmt.Errorf("auth_service_record_failure_failed: %w", err)
	}

	if service.lockout.IsLocked(updated, now) {
		service.logger.WarnContext(context, "account_locked",
			slog.String("principal_id", principalID),
			slog.Int("failed_attempts", updated.FailedAttempts),
		)
		return apperr.AccountLocked()
	}

	service.logger.InfoContext(context, "login_failed",
		slog.String("principal_id", principalID),
		slog.Int("failed_attempts", updated.FailedAttempts),
	)
	return apperr.InvalidCredentials()
}

// notActive reports why a conditional write found no active principal.
func (service *Service) notActive(context context.Context, principalID string) error {
	current, err := service.store.FindByID(context, principalID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return apperr.AccountNotActive("missing")
		}
		return fmt.Errorf("auth_service_status_lookup_failed: %w", err)
	}

	service.logger.WarnContext(context, "session_refused_status",
		slog.String("principal_id", principalID),
		slog.String("status", string(current.Status)),
	)
	return apperr.AccountNotActive(string(current.Status))
}

// checkLoginHints compares the optional role and department hints with the account.
func checkLoginHints(principal *Principal, input LoginInput) error {
	if input.Role != "" && input.Role != string(principal.Grant.Role()) {
		return apperr.Mismatch(apperr.CodeRoleMismatch, "Role does not match this account")
	}

	if input.Department != "" {
		if department, ok := principal.Grant.Department(); ok && string(department) != input.Department {
			return apperr.Mismatch(apperr.CodeDepartmentMismatch, "Department does not match this account")
		}
	}

	return nil
}

// placeholderHash returns a valid hash that no password matches.
func (service *Service) placeholderHash() string {
	service.dummyOnce.Do(func() {
		secret, err := sec.GenerateSecureToken(24)
		if err != nil {
			secret = "sugarmill-placeholder-secret"
		}
		service.dummyHash, _ = service.hasher.Hash(secret)
	})
	return service.dummyHash
}

// # Token Lifecycle

/*
IssuePair signs a new access/refresh pair and persists the refresh token hash.

Description: This is the rotation point. Storing the new hash invalidates every
refresh token issued before it. The write only lands while the principal is
still active.

Parameters:
  - context: context.Context
  - principal: *Principal

Returns:
  - *TokenPair: Signed tokens
  - err: AccountNotActive, signing or storage failures
*/
func (service *Service) IssuePair(context context.Context, principal *Principal) (*TokenPair, error) {
	return service.issuePair(context, principal, nil)
}

// issuePair rotates the refresh slot. A non-nil loginAt also records a successful login.
func (service *Service) issuePair(context context.Context, principal *Principal, loginAt *time.Time) (*TokenPair, error) {
	accessToken, accessExpiresAt, err := service.tokens.GenerateAccessToken(principal.ID, principal.Email, principal.Grant)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshToken, refreshExpiresAt, err := service.tokens.GenerateRefreshToken(principal.ID, principal.Email)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	now := service.now()
	hash := sec.HashToken(refreshToken)

	rotated, err := service.store.RotateRefreshToken(context, principal.ID, hash, loginAt, now)
	if err != nil {
		return nil, fmt.Errorf("auth_service_rotate_failed: %w", err)
	}

	if !rotated {
		return nil, service.notActive(context, principal.ID)
	}

	principal.RefreshTokenHash = hash
	principal.UpdatedAt = now

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		TokenType:             "Bearer",
		ExpiresIn:             int(accessExpiresAt.Sub(service.clock()).Seconds()),
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshTokenExpiresAt: refreshExpiresAt,
	}, nil
}

/*
Refresh exchanges the current refresh token for a new pair.

Description: The presented token must be the one whose hash sits in the
principal's refresh slot. A rotated-out token is rejected even while its
signature and expiry are still valid.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *TokenPair: New tokens
  - err: TokenInvalid, AccountNotActive or storage failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := service.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperr.TokenInvalid("Invalid or expired refresh token")
	}

	principal, err := service.store.FindByID(context, claims.PrincipalID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.TokenInvalid("Invalid or expired refresh token")
		}
		return nil, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}

	if !sec.EqualHashes(sec.HashToken(refreshToken), principal.RefreshTokenHash) {
		service.logger.WarnContext(context, "refresh_token_rejected",
			slog.String("principal_id", principal.ID),
			slog.String("reason", "not_current"),
		)
		return nil, apperr.TokenInvalid("Refresh token is no longer valid")
	}

	if principal.Status != StatusActive {
		return nil, apperr.AccountNotActive(string(principal.Status))
	}

	return service.IssuePair(context, principal)
}

/*
Logout empties the principal's refresh slot.

Description: Idempotent. The access token stays valid until it expires.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - err: Storage failures
*/
func (service *Service) Logout(context context.Context, principalID string) error {
	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		return fmt.Errorf("auth_service_logout_lookup_failed: %w", err)
	}

	if principal.RefreshTokenHash == "" {
		return nil
	}

	if err := service.store.ClearRefreshToken(context, principalID, service.now()); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	service.logger.InfoContext(context, "logout", slog.String("principal_id", principalID))
	return nil
}

// # Identity Resolution

/*
ResolveIdentity loads the principal behind an access token and checks it is usable.

Description: Used by the authentication gate on every request.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - *sec.Identity: Identity for the request context
  - err: Unauthorized (missing), AccountNotActive (403), AccountLocked (423)
*/
func (service *Service) ResolveIdentity(context context.Context, principalID string) (*sec.Identity, error) {
	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized("Principal no longer exists")
		}
		return nil, fmt.Errorf("auth_service_resolve_failed: %w", err)
	}

	if principal.Status != StatusActive {
		return nil, apperr.AccountNotActive(string(principal.Status))
	}

	if service.lockout.IsLocked(principal, service.now()) {
		return nil, apperr.AccountLocked()
	}

	return principal.Identity(), nil
}

/*
Profile returns the principal with the given ID.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - *Principal: Entity without secrets
  - err: NotFound or storage failures
*/
func (service *Service) Profile(context context.Context, principalID string) (*Principal, error) {
	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_profile_failed: %w", err)
	}
	return principal, nil
}

// grantValidationError maps grant parsing failures to field errors.
func grantValidationError(err error) error {
	field := FieldRole
	if errors.Is(err, sec.ErrUnknownDepartment) || errors.Is(err, sec.ErrDepartmentRequired) || errors.Is(err, sec.ErrDepartmentNotAllowed) {
		field = FieldDepartment
	}

	message := strings.TrimPrefix(err.Error(), "sec: ")
	return apperr.ValidationError("Validation failed", apperr.FieldError{Field: field, Message: message})
}
