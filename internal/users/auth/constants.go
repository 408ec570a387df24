// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the duration a refresh token remains valid.
	RefreshTokenTTL = 7 * 24 * time.Hour

	// ResetTokenTTL is the duration a password reset token remains valid.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32

	// VerificationTokenTTL is the duration an email verification token remains valid.
	VerificationTokenTTL = 24 * time.Hour

	// VerificationTokenLength is the byte length of the random verification token.
	VerificationTokenLength = 32

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8

	// MaxPasswordLength is the longest accepted password in characters.
	MaxPasswordLength = 72

	// MaxPasswordBytes is bcrypt's input limit. Multi-byte characters reach it
	// before MaxPasswordLength.
	MaxPasswordBytes = 72
)

// # Lockout Defaults

const (
	// DefaultLockoutThreshold is the number of consecutive failures that locks an account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long a locked account refuses verification.
	DefaultLockoutDuration = 2 * time.Hour
)
