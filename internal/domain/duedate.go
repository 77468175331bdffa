// Package domain – due-date arithmetic.
//
// This file implements the pure trigger-evaluation rules shared by the
// evaluator service and the repositories. All functions are side-effect free
// and operate on absolute instants; the switch Timezone field plays no role
// in deadline computation.
package domain

import "time"

// Baseline returns the instant the deadline is computed from: the last
// check-in when one exists, otherwise the creation time. The zero time is
// returned only for malformed rows (no check-in and unset CreatedAt); callers
// must treat such rows as unevaluable rather than due.
func Baseline(s *Switch) time.Time {
	if s.LastCheckinAt != nil && !s.LastCheckinAt.IsZero() {
		return *s.LastCheckinAt
	}
	return s.CreatedAt
}

// Deadline returns base advanced by intervalDays+graceDays calendar days.
// Calendar addition (AddDate) is intentional: a "30 day" interval crossing a
// DST change is still 30 wall-clock dates, not 720 hours.
func Deadline(base time.Time, intervalDays, graceDays int) time.Time {
	if graceDays < 0 {
		graceDays = 0
	}
	return base.AddDate(0, 0, intervalDays+graceDays)
}

// IsDue reports whether the switch's deadline has passed at now. The boundary
// instant itself counts as due. A non-positive interval is treated as
// always-due once created: upstream validation draws intervals from a fixed
// allowed set, but a bad row must not block the whole pass.
func IsDue(s *Switch, now time.Time) bool {
	base := Baseline(s)
	if base.IsZero() {
		return false
	}
	if s.IntervalDays <= 0 {
		return true
	}
	return !now.Before(Deadline(base, s.IntervalDays, s.GraceDays))
}

// AlreadyAlerted reports whether an alert has been sent for the current cycle,
// i.e. at or after the current baseline. The baseline only moves forward on a
// fresh check-in, so comparing the alert stamp against it suppresses repeat
// sends within one overdue cycle while still permitting a new alert after the
// owner checks in and later lapses again.
func AlreadyAlerted(s *Switch, base time.Time) bool {
	return s.LastAlertSentAt != nil && !s.LastAlertSentAt.Before(base)
}

// NeedsAlert combines the due check with the per-cycle idempotency rule.
// It is the single predicate the due-set selector applies to every active
// switch.
func NeedsAlert(s *Switch, now time.Time) bool {
	base := Baseline(s)
	if base.IsZero() {
		return false
	}
	return IsDue(s, now) && !AlreadyAlerted(s, base)
}
