package domain

import (
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestBaseline_PrefersCheckinOverCreation(t *testing.T) {
	sw := &Switch{
		CreatedAt:     ts("2025-01-01T00:00:00Z"),
		LastCheckinAt: tsp("2025-02-01T12:00:00Z"),
	}
	if got := Baseline(sw); !got.Equal(ts("2025-02-01T12:00:00Z")) {
		t.Fatalf("Baseline = %v; want last check-in", got)
	}

	sw.LastCheckinAt = nil
	if got := Baseline(sw); !got.Equal(ts("2025-01-01T00:00:00Z")) {
		t.Fatalf("Baseline = %v; want created_at", got)
	}

	zero := time.Time{}
	sw.LastCheckinAt = &zero
	if got := Baseline(sw); !got.Equal(ts("2025-01-01T00:00:00Z")) {
		t.Fatalf("Baseline with zero check-in = %v; want created_at", got)
	}
}

func TestDeadline_CalendarAddition(t *testing.T) {
	base := ts("2025-01-31T09:00:00Z")
	if got := Deadline(base, 30, 0); !got.Equal(ts("2025-03-02T09:00:00Z")) {
		t.Fatalf("Deadline(30,0) = %v", got)
	}
	if got := Deadline(base, 30, 2); !got.Equal(ts("2025-03-04T09:00:00Z")) {
		t.Fatalf("Deadline(30,2) = %v", got)
	}
	// Negative grace is clamped, never subtracts from the interval.
	if got := Deadline(base, 30, -5); !got.Equal(ts("2025-03-02T09:00:00Z")) {
		t.Fatalf("Deadline(30,-5) = %v", got)
	}
}

func TestIsDue_BoundaryInstant(t *testing.T) {
	sw := &Switch{
		CreatedAt:    ts("2025-01-01T00:00:00Z"),
		IntervalDays: 7,
		GraceDays:    3,
	}
	deadline := ts("2025-01-11T00:00:00Z")

	if IsDue(sw, deadline.Add(-time.Second)) {
		t.Fatal("due one second before the deadline")
	}
	if !IsDue(sw, deadline) {
		t.Fatal("not due at the exact deadline instant")
	}
	if !IsDue(sw, deadline.Add(time.Second)) {
		t.Fatal("not due after the deadline")
	}
}

func TestIsDue_NonPositiveIntervalAlwaysDue(t *testing.T) {
	now := ts("2025-06-01T00:00:00Z")
	for _, iv := range []int{0, -1, -30} {
		sw := &Switch{CreatedAt: ts("2025-05-31T23:59:59Z"), IntervalDays: iv}
		if !IsDue(sw, now) {
			t.Errorf("interval %d: expected always-due", iv)
		}
	}
}

func TestIsDue_ZeroBaseNotDue(t *testing.T) {
	sw := &Switch{IntervalDays: 0}
	if IsDue(sw, ts("2025-06-01T00:00:00Z")) {
		t.Fatal("switch with unset base must not be due")
	}
}

func TestAlreadyAlerted(t *testing.T) {
	base := ts("2025-03-01T00:00:00Z")

	cases := []struct {
		name  string
		alert *time.Time
		want  bool
	}{
		{"never alerted", nil, false},
		{"alerted before current cycle", tsp("2025-02-15T00:00:00Z"), false},
		{"alerted exactly at baseline", tsp("2025-03-01T00:00:00Z"), true},
		{"alerted within current cycle", tsp("2025-03-20T00:00:00Z"), true},
	}
	for _, tc := range cases {
		sw := &Switch{LastAlertSentAt: tc.alert}
		if got := AlreadyAlerted(sw, base); got != tc.want {
			t.Errorf("%s: AlreadyAlerted = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestNeedsAlert_FullPredicate(t *testing.T) {
	now := ts("2025-04-01T00:00:00Z")

	overdue := &Switch{
		CreatedAt:    ts("2025-01-01T00:00:00Z"),
		IntervalDays: 30,
		GraceDays:    0,
	}
	if !NeedsAlert(overdue, now) {
		t.Fatal("overdue switch with no alert must need one")
	}

	// Alerted within the same cycle: suppressed.
	overdue.LastAlertSentAt = tsp("2025-03-15T00:00:00Z")
	if NeedsAlert(overdue, now) {
		t.Fatal("already-alerted switch must be suppressed")
	}

	// A fresh check-in starts a new cycle; the stale alert stamp no longer
	// counts, but neither is the switch due yet.
	overdue.LastCheckinAt = tsp("2025-03-20T00:00:00Z")
	if NeedsAlert(overdue, now) {
		t.Fatal("freshly checked-in switch must not be due")
	}

	// Lapse again past the new deadline: eligible for a second alert.
	later := ts("2025-04-20T00:00:00Z")
	if !NeedsAlert(overdue, later) {
		t.Fatal("switch overdue in a new cycle must need an alert again")
	}
}
