// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles principal self-service and administrative account actions.

It lets an authenticated principal view and edit the profile fields that are not
part of its credentials, and lets administrators suspend an active account.

# Architecture

  - Domain: This package depends on the auth package for the Principal entity.
  - Storage: Targeted UPDATE statements, so profile edits never touch credentials.
  - Security: Suspension empties the refresh slot and is announced to the mailer.
*/
package account

import (
	"context"
	"time"

	"github.com/taibuivan/sugarmill/internal/users/auth"
)

// # Inputs

// ProfileChanges is the mutable subset of a principal's profile. Nil fields are left untouched.
type ProfileChanges struct {
	Name         *string
	MobileNumber *string
}

// IsEmpty reports whether no field is set.
func (changes ProfileChanges) IsEmpty() bool {
	return changes.Name == nil && changes.MobileNumber == nil
}

// # Repository Contracts

// PrincipalReader loads principals. [auth.CredentialStore] satisfies it.
type PrincipalReader interface {
	FindByID(context context.Context, id string) (*auth.Principal, error)
}

// AccountRepository defines the write contract for account actions.
type AccountRepository interface {
	/*
		UpdateProfile applies profile changes to a principal.

		Parameters:
		  - context: context.Context
		  - id: string
		  - changes: ProfileChanges
		  - now: time.Time

		Returns:
		  - error: apperr.NotFound, apperr.DuplicateIdentity (mobile) or storage failures
	*/
	UpdateProfile(context context.Context, id string, changes ProfileChanges, now time.Time) error

	/*
		Suspend moves an active principal to suspended and empties its refresh slot.

		Description: The status check is part of the statement, so a concurrent
		transition cannot be overwritten.

		Parameters:
		  - context: context.Context
		  - id: string
		  - now: time.Time

		Returns:
		  - bool: false when the principal was not active
		  - error: Storage failures
	*/
	Suspend(context context.Context, id string, now time.Time) (bool, error)
}
