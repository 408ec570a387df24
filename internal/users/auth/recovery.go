// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
)

// # Email Verification

/*
VerifyEmail consumes a single-use verification token and marks the email verified.

Description: Independent of the approval workflow; a pending principal can verify.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - *Principal: Updated entity
  - err: ValidationError (invalid or used token) or storage failures
*/
func (service *Service) VerifyEmail(context context.Context, token string) (*Principal, error) {
	principalID, err := service.verificationTokens.Consume(context, sec.HashToken(token))
	if err != nil {
		return nil, err
	}

	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_verify_lookup_failed: %w", err)
	}

	if principal.IsEmailVerified {
		return principal, nil
	}

	now := service.now()
	if err := service.store.MarkEmailVerified(context, principal.ID, now); err != nil {
		return nil, fmt.Errorf("auth_service_verify_email_failed: %w", err)
	}

	principal.IsEmailVerified = true
	principal.UpdatedAt = now

	service.logger.InfoContext(context, "email_verified", slog.String("principal_id", principal.ID))
	return principal, nil
}

/*
ResendVerification issues a fresh verification token for an unverified principal.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - err: InvalidTransition (already verified) or storage failures
*/
func (service *Service) ResendVerification(context context.Context, principalID string) error {
	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		return fmt.Errorf("auth_service_resend_lookup_failed: %w", err)
	}

	if principal.IsEmailVerified {
		return apperr.InvalidTransition("Email is already verified")
	}

	return service.issueVerificationToken(context, principal)
}

// issueVerificationToken stores the hash of a new token and hands the raw token to the notifier.
func (service *Service) issueVerificationToken(context context.Context, principal *Principal) error {
	return service.issueEmailToken(context, principal, events.PurposeVerifyEmail)
}

// # Password Recovery

/*
RequestPasswordReset starts the forgot-password flow.

Description: Unknown emails succeed silently so the endpoint cannot be used to
discover accounts.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - err: Token storage or publishing failures
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) error {
	principal, err := service.store.FindByEmail(context, NormalizeEmail(email))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	return service.issueEmailToken(context, principal, events.PurposeResetPassword)
}

/*
ResetPassword completes the forgot-password flow.

Description: Replaces the hash, empties the refresh slot and clears any lockout,
so the owner of the mailbox regains access and every old session ends.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - err: ValidationError (invalid token or password) or storage failures
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string) error {
	principalID, err := service.resetTokens.Consume(context, sec.HashToken(token))
	if err != nil {
		return err
	}

	if err := service.replacePassword(context, principalID, newPassword); err != nil {
		return err
	}

	service.logger.InfoContext(context, "password_reset", slog.String("principal_id", principalID))
	return nil
}

/*
ChangePassword updates the credentials of an authenticated principal.

Description: Verifies the current password, then rotates the refresh slot so
every other session ends. The caller receives the new pair. Wrong current
passwords feed the login lockout.

Parameters:
  - context: context.Context
  - principalID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - *TokenPair: Fresh tokens for the caller
  - err: InvalidCredentials, AccountLocked or storage failures
*/
func (service *Service) ChangePassword(context context.Context, principalID, currentPassword, newPassword string) (*TokenPair, error) {
	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	withSecret, err := service.store.FindByEmailWithSecret(context, principal.Email)
	if err != nil {
		return nil, fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	now := service.now()
	service.lockout.ClearIfStale(withSecret, now)

	if service.lockout.IsLocked(withSecret, now) {
		return nil, apperr.AccountLocked()
	}

	// A wrong current password counts toward the same lockout as a failed login.
	if !service.hasher.Verify(currentPassword, withSecret.PasswordHash) {
		return nil, service.recordFailure(context, principalID, now)
	}

	if err := service.replacePassword(context, principalID, newPassword); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "password_changed", slog.String("principal_id", principalID))

	return service.IssuePair(context, principal)
}

// replacePassword hashes and stores a new password. Sessions and lockout end with it.
func (service *Service) replacePassword(context context.Context, principalID, newPassword string) error {
	hashedPassword, err := service.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := service.store.UpdatePassword(context, principalID, hashedPassword, service.now()); err != nil {
		return fmt.Errorf("auth_service_password_update_failed: %w", err)
	}
	return nil
}

// hashPassword maps hasher input errors to a password validation failure.
func (service *Service) hashPassword(password string) (string, error) {
	hashedPassword, err := service.hasher.Hash(password)
	switch {
	case err == nil:
		return hashedPassword, nil
	case errors.Is(err, sec.ErrEmptyPassword):
		return "", apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldPassword, Message: "is required"})
	case errors.Is(err, sec.ErrPasswordTooLong):
		return "", apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldPassword, Message: fmt.Sprintf("Maximum %d bytes", MaxPasswordBytes)})
	default:
		return "", fmt.Errorf("auth_service_password_hash_failed: %w", err)
	}
}

// issueEmailToken stores the hash of a new single-use token and publishes the raw value.
func (service *Service) issueEmailToken(context context.Context, principal *Principal, purpose events.TokenPurpose) error {
	repository, ttl, length := service.verificationTokens, VerificationTokenTTL, VerificationTokenLength
	if purpose == events.PurposeResetPassword {
		repository, ttl, length = service.resetTokens, ResetTokenTTL, ResetTokenLength
	}

	token, err := sec.GenerateSecureToken(length)
	if err != nil {
		return fmt.Errorf("auth_service_generate_token_failed: %w", err)
	}

	if err := repository.Set(context, sec.HashToken(token), principal.ID, ttl); err != nil {
		return fmt.Errorf("auth_service_store_token_failed: %w", err)
	}

	event := events.EmailToken{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Name:        principal.Name,
		Purpose:     purpose,
		Token:       token,
		ExpiresAt:   service.now().Add(ttl),
	}

	if err := service.notifier.PublishEmailToken(context, event); err != nil {
		return fmt.Errorf("auth_service_publish_token_failed: %w", err)
	}

	return nil
}
