// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the identity and access core of Sugarmill.

It defines the Principal entity and the rules that govern it: registration,
credential verification with lockout, single-slot refresh token rotation, the
admin approval workflow and identity resolution for the request gate.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no storage
dependencies and encapsulate all business rules related to principal identity.
*/
package auth

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/pkg/pointer"
	"github.com/taibuivan/sugarmill/pkg/slice"
)

// # Account Status

// Status governs whether a principal may authenticate.
type Status string

const (
	// Newly registered, waiting for an administrator
	StatusPending Status = "pending"

	// Approved and usable
	StatusActive Status = "active"

	// Disabled by an administrator after approval
	StatusSuspended Status = "suspended"

	// Refused by an administrator, terminal
	StatusRejected Status = "rejected"
)

// # Domain Entities

// Principal is one registered farmer, logistics partner, administrator or staff member.
type Principal struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	MobileNumber     string     `json:"mobileNumber,omitempty"`
	PasswordHash     string     `json:"-"`
	Grant            sec.Grant  `json:"-"`
	Status           Status     `json:"status"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	FailedAttempts   int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	RefreshTokenHash string     `json:"-"`
	ApprovedBy       *string    `json:"approvedBy,omitempty"`
	ApprovalDate     *time.Time `json:"approvalDate,omitempty"`
	RejectionReason  *string    `json:"rejectionReason,omitempty"`
	LastLoginAt      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// View is the client-facing projection of a [Principal]. It never carries secrets
// or lockout counters.
type View struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	MobileNumber    string     `json:"mobileNumber,omitempty"`
	Role            sec.Role   `json:"role"`
	Department      *string    `json:"department"`
	Status          Status     `json:"status"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovalDate    *time.Time `json:"approvalDate,omitempty"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	LastLoginAt     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// View projects the principal for API responses.
func (principal *Principal) View() View {
	view := View{
		ID:              principal.ID,
		Name:            principal.Name,
		Email:           principal.Email,
		MobileNumber:    principal.MobileNumber,
		Role:            principal.Grant.Role(),
		Status:          principal.Status,
		IsEmailVerified: principal.IsEmailVerified,
		ApprovedBy:      principal.ApprovedBy,
		ApprovalDate:    principal.ApprovalDate,
		RejectionReason: principal.RejectionReason,
		LastLoginAt:     principal.LastLoginAt,
		CreatedAt:       principal.CreatedAt,
	}
	if department, ok := principal.Grant.Department(); ok {
		view.Department = pointer.To(string(department))
	}
	return view
}

// Identity builds the request identity attached by the gate.
func (principal *Principal) Identity() *sec.Identity {
	return &sec.Identity{
		PrincipalID:   principal.ID,
		Email:         principal.Email,
		Name:          principal.Name,
		Grant:         principal.Grant,
		EmailVerified: principal.IsEmailVerified,
	}
}

// Views projects a slice of principals.
func Views(principals []*Principal) []View {
	return slice.Map(principals, (*Principal).View)
}

// # Normalization

// NormalizeEmail trims, NFKC-normalizes and case-folds an email address so that
// visually identical addresses map to one login handle.
func NormalizeEmail(email string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(email)))
}

// # Field Identifiers

// Field names used in validation errors and request payloads.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldMobileNumber    = "mobileNumber"
	FieldRole            = "role"
	FieldDepartment      = "department"
	FieldRefreshToken    = "refreshToken"
	FieldToken           = "token"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
	FieldReason          = "reason"
	FieldUserID          = "userId"
)
