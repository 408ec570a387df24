// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// LockoutPolicy decides when repeated failed logins lock a principal.
//
// Lock state is a pure function of LockedUntil and the current time. A past
// LockedUntil is equivalent to unlocked and is cleared lazily on the next check,
// so no background sweep is needed.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the 5 failures / 2 hours policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// IsLocked reports whether principal refuses verification at now. It never mutates.
func (policy LockoutPolicy) IsLocked(principal *Principal, now time.Time) bool {
	return principal.LockedUntil != nil && principal.LockedUntil.After(now)
}

// ClearIfStale drops an expired lock and its counter. It reports whether anything changed.
func (policy LockoutPolicy) ClearIfStale(principal *Principal, now time.Time) bool {
	if principal.LockedUntil == nil || principal.LockedUntil.After(now) {
		return false
	}
	principal.LockedUntil = nil
	principal.FailedAttempts = 0
	return true
}

// RegisterFailure records one failed verification at now.
//
// Counting restarts from 1 after a stale lock. Reaching the threshold sets
// LockedUntil and pins FailedAttempts at the threshold value.
func (policy LockoutPolicy) RegisterFailure(principal *Principal, now time.Time) {
	policy.ClearIfStale(principal, now)

	principal.FailedAttempts++
	if principal.FailedAttempts >= policy.Threshold {
		principal.FailedAttempts = policy.Threshold
		lockedUntil := now.Add(policy.Duration)
		principal.LockedUntil = &lockedUntil
	}
}

// RegisterSuccess resets the counter and clears any lock.
func (policy LockoutPolicy) RegisterSuccess(principal *Principal) {
	principal.FailedAttempts = 0
	principal.LockedUntil = nil
}
