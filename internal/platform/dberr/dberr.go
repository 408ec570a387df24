// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// Parameters:
//   - err: the driver error
//   - resource: the entity name used in NotFound messages (e.g. "Principal")
//   - action: a snake_case tag kept in the cause for server-side logs
func Wrap(err error, resource, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {

		// 2. Unique constraint violations become duplicate identities
		case pgerrcode.UniqueViolation:
			return apperr.DuplicateIdentity(duplicateMessage(pgErr.ConstraintName)).WithCause(err)

		// 3. The pool's statement_timeout fired
		case pgerrcode.QueryCanceled:
			return apperr.ServiceUnavailable("Database is not responding").WithCause(fmt.Errorf("%s: %w", action, err))
		}
	}

	// 4. Unknown query errors become Internal Server Errors
	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}

// duplicateMessage names the colliding field from the constraint name.
func duplicateMessage(constraint string) string {
	switch constraint {
	case "principal_email_key":
		return "Email is already registered"
	case "principal_mobilenumber_key":
		return "Mobile number is already registered"
	default:
		return "An account with these details already exists"
	}
}
