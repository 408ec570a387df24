// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/platform/validate"
	"github.com/taibuivan/sugarmill/pkg/pagination"
	"github.com/taibuivan/sugarmill/pkg/uuid"
)

// # Approval Workflow
//
// pending -> active | rejected. Both outcomes are terminal for this workflow and
// the approval fields are written exactly once.

/*
Approve activates a pending principal.

Parameters:
  - context: context.Context
  - principalID: string
  - adminID: string

Returns:
  - *Principal: Updated entity
  - err: NotFound, InvalidTransition or storage failures
*/
func (service *Service) Approve(context context.Context, principalID, adminID string) (*Principal, error) {
	principal, err := service.pendingPrincipal(context, principalID, "approved")
	if err != nil {
		return nil, err
	}

	now := service.now()
	decision := Decision{Status: StatusActive, ApprovedBy: &adminID, ApprovalDate: &now, DecidedAt: now}

	if err := service.decide(context, principal, decision, "approved"); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "principal_approved",
		slog.String("principal_id", principal.ID),
		slog.String("admin_id", adminID),
	)

	service.announce(context, principal, events.DecisionApproved, "", adminID, now)
	return principal, nil
}

/*
Reject refuses a pending principal with a mandatory reason.

Parameters:
  - context: context.Context
  - principalID: string
  - adminID: string
  - reason: string

Returns:
  - *Principal: Updated entity
  - err: ValidationError (blank reason), NotFound, InvalidTransition or storage failures
*/
func (service *Service) Reject(context context.Context, principalID, adminID, reason string) (*Principal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldReason, Message: "is required"})
	}

	principal, err := service.pendingPrincipal(context, principalID, "rejected")
	if err != nil {
		return nil, err
	}

	now := service.now()
	decision := Decision{Status: StatusRejected, RejectionReason: &reason, DecidedAt: now}

	if err := service.decide(context, principal, decision, "rejected"); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "principal_rejected",
		slog.String("principal_id", principal.ID),
		slog.String("admin_id", adminID),
	)

	service.announce(context, principal, events.DecisionRejected, reason, adminID, now)
	return principal, nil
}

/*
ListPending returns principals awaiting approval, newest first.

Parameters:
  - context: context.Context
  - rawRole: string (optional role filter, empty for all)
  - page: pagination.Params

Returns:
  - []*Principal: One page of principals
  - int: Total pending principals matching the filter
  - err: ValidationError (unknown role) or storage failures
*/
func (service *Service) ListPending(context context.Context, rawRole string, page pagination.Params) ([]*Principal, int, error) {
	var roleFilter *sec.Role
	if rawRole != "" {
		role, err := sec.ParseRole(rawRole)
		if err != nil {
			return nil, 0, apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldRole, Message: "is not a known role"})
		}
		roleFilter = &role
	}

	principals, total, err := service.store.ListPending(context, roleFilter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("auth_service_list_pending_failed: %w", err)
	}

	return principals, total, nil
}

// pendingPrincipal loads a principal and requires it to be pending.
func (service *Service) pendingPrincipal(context context.Context, principalID, outcome string) (*Principal, error) {
	principal, err := service.store.FindByID(context, principalID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_workflow_lookup_failed: %w", err)
	}

	if principal.Status != StatusPending {
		return nil, apperr.InvalidTransition(
			fmt.Sprintf("Principal is %s and cannot be %s", principal.Status, outcome),
		)
	}

	return principal, nil
}

// decide writes the decision and copies it onto principal. Losing a race to
// another decision is an invalid transition.
func (service *Service) decide(context context.Context, principal *Principal, decision Decision, outcome string) error {
	applied, err := service.store.Decide(context, principal.ID, decision)
	if err != nil {
		return fmt.Errorf("auth_service_decide_failed: %w", err)
	}

	if !applied {
		current, err := service.store.FindByID(context, principal.ID)
		if err != nil {
			return fmt.Errorf("auth_service_workflow_lookup_failed: %w", err)
		}
		return apperr.InvalidTransition(
			fmt.Sprintf("Principal is %s and cannot be %s", current.Status, outcome),
		)
	}

	principal.Status = decision.Status
	principal.ApprovedBy = decision.ApprovedBy
	principal.ApprovalDate = decision.ApprovalDate
	principal.RejectionReason = decision.RejectionReason
	principal.UpdatedAt = decision.DecidedAt
	return nil
}

// announce publishes an account decision. Delivery failures never undo the transition.
func (service *Service) announce(context context.Context, principal *Principal, decision events.Decision, reason, adminID string, at time.Time) {
	event := events.AccountDecision{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Name:        principal.Name,
		Role:        string(principal.Grant.Role()),
		Decision:    decision,
		Reason:      reason,
		DecidedBy:   adminID,
		DecidedAt:   at,
	}

	if err := service.notifier.PublishAccountDecision(context, event); err != nil {
		service.logger.ErrorContext(context, "account_decision_publish_failed",
			slog.String("principal_id", principal.ID),
			slog.String("decision", string(decision)),
			slog.String("error", err.Error()),
		)
	}
}

// # Bootstrap

// AdminInput holds the credentials of a bootstrapped administrator.
type AdminInput struct {
	Name     string
	Email    string
	Password string
}

/*
CreateAdmin enrolls an active, verified administrator without going through
approval. It backs the create-admin command; the HTTP surface never calls it.

Parameters:
  - context: context.Context
  - input: AdminInput

Returns:
  - *Principal: Created entity
  - err: ValidationError, DuplicateIdentity or storage errors
*/
func (service *Service) CreateAdmin(context context.Context, input AdminInput) (*Principal, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).MaxLen(FieldName, input.Name, 100)
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxLen(FieldPassword, input.Password, MaxPasswordLength).
		MaxBytes(FieldPassword, input.Password, MaxPasswordBytes)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	hashedPassword, err := service.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := service.now()
	principal := &Principal{
		ID:              uuid.New(),
		Name:            input.Name,
		Email:           NormalizeEmail(input.Email),
		PasswordHash:    hashedPassword,
		Grant:           sec.AdminGrant(),
		Status:          StatusActive,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := service.store.Create(context, principal); err != nil {
		return nil, fmt.Errorf("auth_service_create_admin_failed: %w", err)
	}

	service.logger.InfoContext(context, "admin_bootstrapped", slog.String("principal_id", principal.ID))
	return principal, nil
}
