// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/users/auth"
	"github.com/taibuivan/sugarmill/pkg/pointer"
)

// # Service Layer

// Service orchestrates profile edits and administrative account actions.
type Service struct {
	principals        PrincipalReader
	accountRepository AccountRepository
	notifier          auth.Notifier
	logger            *slog.Logger
	clock             func() time.Time
}

// NewService constructs a new [Service]. A nil notifier falls back to logging.
func NewService(principals PrincipalReader, accountRepo AccountRepository, notifier auth.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = events.NewLogPublisher(logger)
	}

	return &Service{
		principals:        principals,
		accountRepository: accountRepo,
		notifier:          notifier,
		logger:            logger,
		clock:             time.Now,
	}
}

// WithClock overrides the time source, mainly for tests.
func (service *Service) WithClock(clock func() time.Time) *Service {
	service.clock = clock
	return service
}

// # Profile Management

/*
GetProfile retrieves the principal behind the session.

Parameters:
  - context: context.Context
  - principalID: string

Returns:
  - *auth.Principal: The hydrated principal, without secrets
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, principalID string) (*auth.Principal, error) {
	principal, err := service.principals.FindByID(context, principalID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return principal, nil
}

/*
UpdateProfile applies a partial set of changes to the principal's profile.

Description: Email, role and department are not editable here. Changing the
mobile number is subject to the same uniqueness rule as registration.

Parameters:
  - context: context.Context
  - principalID: string
  - changes: ProfileChanges

Returns:
  - *auth.Principal: The updated principal
  - error: ValidationError, DuplicateIdentity or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, principalID string, changes ProfileChanges) (*auth.Principal, error) {
	if changes.IsEmpty() {
		return nil, apperr.ValidationError("No changes supplied")
	}

	if changes.Name != nil {
		changes.Name = pointer.To(strings.TrimSpace(*changes.Name))
	}
	if changes.MobileNumber != nil {
		changes.MobileNumber = pointer.To(strings.TrimSpace(*changes.MobileNumber))
	}

	if err := service.accountRepository.UpdateProfile(context, principalID, changes, service.clock().UTC()); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.InfoContext(context, "principal_profile_updated", slog.String("principal_id", principalID))

	return service.GetProfile(context, principalID)
}

// # Administrative Actions

/*
Suspend disables an active principal.

Description: The refresh slot is emptied in the same statement, so the principal
cannot renew its session; the gate rejects its access tokens immediately because
it reloads status on every request.

Parameters:
  - context: context.Context
  - principalID: string
  - adminID: string
  - reason: string (optional, forwarded to the notification)

Returns:
  - *auth.Principal: The suspended principal
  - error: NotFound, InvalidTransition or storage failures
*/
func (service *Service) Suspend(context context.Context, principalID, adminID, reason string) (*auth.Principal, error) {
	if principalID == adminID {
		return nil, apperr.InvalidTransition("Administrators cannot suspend their own account")
	}

	principal, err := service.principals.FindByID(context, principalID)
	if err != nil {
		return nil, fmt.Errorf("account_service_suspend_lookup_failed: %w", err)
	}

	if principal.Status != auth.StatusActive {
		return nil, apperr.InvalidTransition(fmt.Sprintf("Principal is %s and cannot be suspended", principal.Status))
	}

	now := service.clock().UTC()

	changed, err := service.accountRepository.Suspend(context, principalID, now)
	if err != nil {
		return nil, fmt.Errorf("account_service_suspend_failed: %w", err)
	}

	// Lost a race with another transition.
	if !changed {
		return nil, apperr.InvalidTransition("Principal is no longer active")
	}

	service.logger.WarnContext(context, "principal_suspended",
		slog.String("principal_id", principalID),
		slog.String("admin_id", adminID),
	)

	event := events.AccountDecision{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Name:        principal.Name,
		Role:        string(principal.Grant.Role()),
		Decision:    events.DecisionSuspended,
		Reason:      strings.TrimSpace(reason),
		DecidedBy:   adminID,
		DecidedAt:   now,
	}

	if err := service.notifier.PublishAccountDecision(context, event); err != nil {
		service.logger.ErrorContext(context, "account_decision_publish_failed",
			slog.String("principal_id", principalID),
			slog.String("decision", string(events.DecisionSuspended)),
			slog.String("error", err.Error()),
		)
	}

	return service.GetProfile(context, principalID)
}
