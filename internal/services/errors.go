// Package services defines the business logic for switches, recipients, and
// trigger evaluation. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Switch-related errors.
var (
	// ErrSwitchNotFound indicates that the requested switch does not exist or
	// is not accessible to the current user.
	ErrSwitchNotFound = errors.New("switch not found")

	// ErrInvalidInterval is returned when interval_days is outside the allowed
	// set offered in the creation flow.
	ErrInvalidInterval = errors.New("interval_days is not an allowed value")

	// ErrInvalidGrace is returned when grace_days is negative or unreasonably
	// large.
	ErrInvalidGrace = errors.New("grace_days out of range")

	// ErrInvalidTimezone is returned when the timezone is not a loadable IANA
	// zone name.
	ErrInvalidTimezone = errors.New("unknown timezone")

	// ErrInvalidStatus is returned when a status value is outside the set
	// active/paused/completed.
	ErrInvalidStatus = errors.New("status must be active, paused, or completed")

	// ErrSwitchCompleted is returned when an operation targets a completed
	// switch; completed is a terminal state.
	ErrSwitchCompleted = errors.New("switch is completed")
)

// Message-related errors.
var (
	// ErrEmptyMessage is returned when a message body is empty after trimming.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrMessageNotFound indicates the switch has no message configured.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageTooLong is returned when a message body exceeds the configured
	// length limit.
	ErrMessageTooLong = errors.New("message body too long")
)

// Recipient-related errors.
var (
	// ErrRecipientNotFound indicates that the requested recipient does not
	// exist or is not accessible to the current user.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrInvalidEmail is returned when a recipient email address does not
	// parse.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrDuplicateRecipient is returned when the owner already has a recipient
	// with the same (case-folded) email address.
	ErrDuplicateRecipient = errors.New("recipient email already registered")

	// ErrAlreadyAttached is returned when a recipient is already attached to
	// the switch.
	ErrAlreadyAttached = errors.New("recipient already attached")

	// ErrNotAttached is returned when detaching a recipient that is not
	// attached to the switch.
	ErrNotAttached = errors.New("recipient not attached")
)

// Evaluation-related errors.
var (
	// ErrMailerNotConfigured is returned when an evaluation run is requested
	// but no mail transport is configured. This is a fatal precondition for
	// the whole run, not a per-switch failure.
	ErrMailerNotConfigured = errors.New("mail transport not configured")
)
