// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty plain-text password.
	ErrEmptyPassword = errors.New("sec: password must not be empty")

	// ErrPasswordTooLong is returned when the UTF-8 encoding exceeds bcrypt's 72 byte limit.
	ErrPasswordTooLong = errors.New("sec: password exceeds 72 bytes")
)

// PasswordHasher hashes and verifies secrets with bcrypt at a fixed cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, falling back to
// [bcrypt.DefaultCost] when cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash hashes a plain-text password using the bcrypt algorithm.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	if plainTextPassword == "" {
		return "", ErrEmptyPassword
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its hashed version.
// A malformed hash is reported as a mismatch.
func (hasher *PasswordHasher) Verify(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}
