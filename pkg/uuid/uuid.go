// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid generates the time-ordered identifiers used as principal keys.

Version 7 values sort by creation time, which keeps the users.principal primary
key index append-only.
*/
package uuid

import "github.com/google/uuid"

// New generates a new UUIDv7 string.
func New() string {
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuid: failed to generate UUIDv7: " + err.Error())
	}

	return id.String()
}

// IsValid reports whether raw parses as a UUID of any version.
func IsValid(raw string) bool {
	return uuid.Validate(raw) == nil
}
