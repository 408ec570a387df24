// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sugarmill/internal/platform/apperr"
	"github.com/taibuivan/sugarmill/internal/platform/dberr"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/pkg/pagination"
	"github.com/taibuivan/sugarmill/pkg/uuid"
)

// resourcePrincipal names the entity in NotFound messages.
const resourcePrincipal = "Principal"

// principalColumns is the default projection. It never includes passwordhash.
const principalColumns = `
	id, name, email, COALESCE(mobilenumber, ''), role, department, status, isemailverified,
	failedattempts, lockeduntil, COALESCE(refreshtokenhash, ''), approvedby, approvaldate,
	rejectionreason, lastloginat, createdat, updatedat`

// # Credential Store

// PostgresCredentialStore implements [CredentialStore] using pgx.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewCredentialStore creates a new PostgreSQL implementation of the [CredentialStore].
func NewCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

/*
Create persists a new principal record into the users.principal table.

Parameters:
  - context: context.Context
  - principal: *Principal (Entity to persist, PasswordHash included)

Returns:
  - error: apperr.DuplicateIdentity or connectivity errors
*/
func (repository *PostgresCredentialStore) Create(context context.Context, principal *Principal) error {
	const query = `
		INSERT INTO users.principal (
			id, name, email, mobilenumber, passwordhash, role, department, status,
			isemailverified, failedattempts, createdat, updatedat
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12)`

	role, department := grantColumns(principal.Grant)

	_, err := repository.pool.Exec(context, query,
		principal.ID,
		principal.Name,
		principal.Email,
		principal.MobileNumber,
		principal.PasswordHash,
		role,
		department,
		principal.Status,
		principal.IsEmailVerified,
		principal.FailedAttempts,
		principal.CreatedAt,
		principal.UpdatedAt,
	)

	return dberr.Wrap(err, resourcePrincipal, "postgres_principal_create_failed")
}

/*
FindByEmail retrieves a principal by its normalized email, without the password hash.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Principal: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) FindByEmail(context context.Context, email string) (*Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM users.principal WHERE email = $1`

	principal, err := scanPrincipal(repository.pool.QueryRow(context, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, resourcePrincipal, "postgres_principal_find_by_email_failed")
	}
	return principal, nil
}

/*
FindByEmailWithSecret retrieves a principal by email including its password hash.

Description: The login path is the only caller.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Principal: Hydrated entity with PasswordHash
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) FindByEmailWithSecret(context context.Context, email string) (*Principal, error) {
	query := `SELECT ` + principalColumns + `, passwordhash FROM users.principal WHERE email = $1`

	var passwordHash string
	principal, err := scanPrincipal(repository.pool.QueryRow(context, query, email), &passwordHash)
	if err != nil {
		return nil, dberr.Wrap(err, resourcePrincipal, "postgres_principal_find_with_secret_failed")
	}

	principal.PasswordHash = passwordHash
	return principal, nil
}

/*
FindByID retrieves a principal by its unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *Principal: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) FindByID(context context.Context, id string) (*Principal, error) {
	// A malformed id can never match; Postgres would reject the cast instead.
	if !uuid.IsValid(id) {
		return nil, apperr.NotFound(resourcePrincipal)
	}

	query := `SELECT ` + principalColumns + ` FROM users.principal WHERE id = $1`

	principal, err := scanPrincipal(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, resourcePrincipal, "postgres_principal_find_by_id_failed")
	}
	return principal, nil
}

/*
RotateRefreshToken writes a new refresh token hash while the principal is active.

Description: A login also stamps lastloginat and clears the lockout counters in
the same statement. Status is only read here, never written.

Parameters:
  - context: context.Context
  - id: string
  - hash: string
  - loginAt: *time.Time
  - now: time.Time

Returns:
  - bool: False when no active principal matched
  - error: Database errors
*/
func (repository *PostgresCredentialStore) RotateRefreshToken(context context.Context, id, hash string, loginAt *time.Time, now time.Time) (bool, error) {
	if !uuid.IsValid(id) {
		return false, nil
	}

	const query = `
		UPDATE users.principal
		SET refreshtokenhash = $2,
			lastloginat = COALESCE($3::timestamptz, lastloginat),
			failedattempts = CASE WHEN $3::timestamptz IS NULL THEN failedattempts ELSE 0 END,
			lockeduntil = CASE WHEN $3::timestamptz IS NULL THEN lockeduntil ELSE NULL END,
			updatedat = $4
		WHERE id = $1 AND status = 'active'`

	tag, err := repository.pool.Exec(context, query, id, hash, loginAt, now)
	if err != nil {
		return false, dberr.Wrap(err, resourcePrincipal, "postgres_principal_rotate_refresh_failed")
	}
	return tag.RowsAffected() == 1, nil
}

/*
ClearRefreshToken empties the refresh slot.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) ClearRefreshToken(context context.Context, id string, now time.Time) error {
	const query = `UPDATE users.principal SET refreshtokenhash = NULL, updatedat = $2 WHERE id = $1`
	return repository.exec(context, "postgres_principal_clear_refresh_failed", query, id, now)
}

/*
MarkEmailVerified sets isemailverified.

Parameters:
  - context: context.Context
  - id: string
  - now: time.Time

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) MarkEmailVerified(context context.Context, id string, now time.Time) error {
	const query = `UPDATE users.principal SET isemailverified = TRUE, updatedat = $2 WHERE id = $1`
	return repository.exec(context, "postgres_principal_verify_email_failed", query, id, now)
}

/*
Decide applies an approval decision to a pending principal.

Description: The pending check is part of the statement, so two administrators
deciding at once produce exactly one winner.

Parameters:
  - context: context.Context
  - id: string
  - decision: Decision

Returns:
  - bool: False when no pending principal matched
  - error: Database errors
*/
func (repository *PostgresCredentialStore) Decide(context context.Context, id string, decision Decision) (bool, error) {
	if !uuid.IsValid(id) {
		return false, nil
	}

	const query = `
		UPDATE users.principal
		SET status = $2, approvedby = $3, approvaldate = $4, rejectionreason = $5, updatedat = $6
		WHERE id = $1 AND status = 'pending'`

	tag, err := repository.pool.Exec(context, query,
		id,
		decision.Status,
		decision.ApprovedBy,
		decision.ApprovalDate,
		decision.RejectionReason,
		decision.DecidedAt,
	)
	if err != nil {
		return false, dberr.Wrap(err, resourcePrincipal, "postgres_principal_decide_failed")
	}
	return tag.RowsAffected() == 1, nil
}

/*
UpdatePassword replaces the password hash, empties the refresh slot and clears
the lockout counters.

Parameters:
  - context: context.Context
  - id: string
  - hash: string
  - now: time.Time

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) UpdatePassword(context context.Context, id, hash string, now time.Time) error {
	const query = `
		UPDATE users.principal
		SET passwordhash = $2, refreshtokenhash = NULL, failedattempts = 0, lockeduntil = NULL, updatedat = $3
		WHERE id = $1`
	return repository.exec(context, "postgres_principal_update_password_failed", query, id, hash, now)
}

// exec runs a single-row update keyed by id ($1) and reports a missing row as NotFound.
func (repository *PostgresCredentialStore) exec(context context.Context, tag, query string, id string, args ...any) error {
	if !uuid.IsValid(id) {
		return apperr.NotFound(resourcePrincipal)
	}

	result, err := repository.pool.Exec(context, query, append([]any{id}, args...)...)
	if err != nil {
		return dberr.Wrap(err, resourcePrincipal, tag)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound(resourcePrincipal)
	}
	return nil
}

/*
RecordFailedLogin applies one failed verification in a single statement.

Description: Every SET expression reads the pre-update row, so concurrent failures
serialize on the row lock and none is lost. A stale lock restarts counting at 1.

Parameters:
  - context: context.Context
  - id: string
  - threshold: int
  - lockFor: time.Duration
  - now: time.Time

Returns:
  - *Principal: State after the update
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresCredentialStore) RecordFailedLogin(context context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (*Principal, error) {
	if !uuid.IsValid(id) {
		return nil, apperr.NotFound(resourcePrincipal)
	}

	query := `
		UPDATE users.principal
		SET failedattempts = LEAST(
				CASE WHEN lockeduntil IS NOT NULL AND lockeduntil <= $3 THEN 0 ELSE failedattempts END + 1,
				$2::int),
			lockeduntil = CASE
				WHEN CASE WHEN lockeduntil IS NOT NULL AND lockeduntil <= $3 THEN 0 ELSE failedattempts END + 1 >= $2::int
					THEN $4::timestamptz
				WHEN lockeduntil IS NOT NULL AND lockeduntil <= $3 THEN NULL
				ELSE lockeduntil
			END,
			updatedat = $3
		WHERE id = $1
		RETURNING ` + principalColumns

	principal, err := scanPrincipal(repository.pool.QueryRow(context, query, id, threshold, now, now.Add(lockFor)))
	if err != nil {
		return nil, dberr.Wrap(err, resourcePrincipal, "postgres_principal_record_failure_failed")
	}
	return principal, nil
}

/*
ListPending returns pending principals, newest first, with the total count.

Parameters:
  - context: context.Context
  - role: *sec.Role (optional filter)
  - page: pagination.Params

Returns:
  - []*Principal: One page of principals
  - int: Total matching principals
  - error: Database errors
*/
func (repository *PostgresCredentialStore) ListPending(context context.Context, role *sec.Role, page pagination.Params) ([]*Principal, int, error) {
	var roleFilter *string
	if role != nil {
		value := string(*role)
		roleFilter = &value
	}

	const countQuery = `
		SELECT COUNT(*) FROM users.principal
		WHERE status = 'pending' AND ($1::text IS NULL OR role = $1::text)`

	var total int
	if err := repository.pool.QueryRow(context, countQuery, roleFilter).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, resourcePrincipal, "postgres_principal_count_pending_failed")
	}

	query := `SELECT ` + principalColumns + `
		FROM users.principal
		WHERE status = 'pending' AND ($1::text IS NULL OR role = $1::text)
		ORDER BY createdat DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, roleFilter, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, resourcePrincipal, "postgres_principal_list_pending_failed")
	}
	defer rows.Close()

	principals := make([]*Principal, 0, page.Limit)
	for rows.Next() {
		principal, err := scanPrincipal(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, resourcePrincipal, "postgres_principal_scan_pending_failed")
		}
		principals = append(principals, principal)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, resourcePrincipal, "postgres_principal_list_pending_failed")
	}

	return principals, total, nil
}

// # Scanning

// scanPrincipal reads [principalColumns] followed by any extra destinations.
func scanPrincipal(row pgx.Row, extra ...any) (*Principal, error) {
	principal := &Principal{}
	var role string
	var department *string

	destinations := []any{
		&principal.ID,
		&principal.Name,
		&principal.Email,
		&principal.MobileNumber,
		&role,
		&department,
		&principal.Status,
		&principal.IsEmailVerified,
		&principal.FailedAttempts,
		&principal.LockedUntil,
		&principal.RefreshTokenHash,
		&principal.ApprovedBy,
		&principal.ApprovalDate,
		&principal.RejectionReason,
		&principal.LastLoginAt,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	}

	if err := row.Scan(append(destinations, extra...)...); err != nil {
		return nil, err
	}

	rawDepartment := ""
	if department != nil {
		rawDepartment = *department
	}

	grant, err := sec.ParseGrant(role, rawDepartment)
	if err != nil {
		return nil, fmt.Errorf("postgres_principal_corrupt_grant: %w", err)
	}
	principal.Grant = grant

	return principal, nil
}

// grantColumns splits a grant into its role and nullable department columns.
func grantColumns(grant sec.Grant) (string, *string) {
	department, ok := grant.Department()
	if !ok {
		return string(grant.Role()), nil
	}
	value := string(department)
	return string(grant.Role()), &value
}
