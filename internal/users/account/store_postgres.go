// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/dberr"
)

// resourcePrincipal names the entity in NotFound messages.
const resourcePrincipal = "Principal"

// # Repository Implementations

// PostgresAccountRepository implements [AccountRepository] on the users.principal table.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for account actions.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
UpdateProfile updates name and mobile number in place.

Parameters:
  - context: context.Context
  - id: string
  - changes: ProfileChanges
  - now: time.Time

Returns:
  - error: apperr.NotFound, apperr.DuplicateIdentity or database execution failure
*/
func (repository *PostgresAccountRepository) UpdateProfile(context context.Context, id string, changes ProfileChanges, now time.Time) error {
	const query = `
		UPDATE users.principal
		SET name         = COALESCE($2, name),
		    mobilenumber = CASE WHEN $3::text IS NULL THEN mobilenumber ELSE NULLIF($3::text, '') END,
		    updatedat    = $4
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, id, changes.Name, changes.MobileNumber, now)
	if err != nil {
		return dberr.Wrap(err, resourcePrincipal, "postgres_account_update_profile_failed")
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourcePrincipal)
	}

	return nil
}

/*
Suspend flips an active principal to suspended.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - bool: Whether a row changed
  - error: Database execution failure
*/
func (repository *PostgresAccountRepository) Suspend(context context.Context, id string, now time.Time) (bool, error) {
	const query = `
		UPDATE users.principal
		SET status = 'suspended', refreshtokenhash = NULL, updatedat = $2
		WHERE id = $1 AND status = 'active'`

	tag, err := repository.pool.Exec(context, query, id, now)
	if err != nil {
		return false, dberr.Wrap(err, resourcePrincipal, "postgres_account_suspend_failed")
	}

	return tag.RowsAffected() == 1, nil
}
