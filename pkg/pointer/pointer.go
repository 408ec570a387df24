// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pointer helps with the optional fields of partial updates and views.
package pointer

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}
