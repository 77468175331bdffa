// Package services – SwitchService
//
// This file implements SwitchService, the application-level component that
// owns the lifecycle of switches: creation, configuration, the status state
// machine, the check-in recorder, the attached message, and recipient
// attachments. It validates inputs, enforces ownership, and delegates
// persistence to the repo layer.
//
// Observability: the state-changing methods are OpenTelemetry-instrumented;
// spans include switch/user identifiers.

package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/afoster/go-switch-backend/internal/domain"
	"github.com/afoster/go-switch-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultName is used when a switch is created without a display label.
const defaultName = "New switch"

// allowedIntervals is the fixed set of check-in periods offered in the
// creation flow. The evaluator itself tolerates arbitrary values; this set
// only gates what the API accepts.
var allowedIntervals = map[int]bool{
	1: true, 2: true, 3: true, 7: true, 14: true,
	30: true, 60: true, 90: true, 180: true, 365: true,
}

// maxGraceDays bounds the grace period accepted by the API.
const maxGraceDays = 365

// SwitchService coordinates switch lifecycle, check-ins, messages, and
// recipient attachments.
type SwitchService struct {
	DB *gorm.DB

	// Optional guards
	MaxNameRunes int
	MaxBodyRunes int

	// SessionTTL is how long a check-in session stamp suppresses repeat
	// automatic check-ins. Zero means 30 minutes.
	SessionTTL time.Duration
}

// Create validates the configuration and inserts a new active switch whose
// baseline is the creation instant.
func (s *SwitchService) Create(ctx context.Context, userID, name string, intervalDays, graceDays int, timezone string) (*domain.Switch, error) {
	tr := otel.Tracer("services/SwitchService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	name, timezone, err := s.validateConfig(name, intervalDays, graceDays, timezone)
	if err != nil {
		return nil, err
	}
	return repo.CreateSwitch(ctx, s.DB, userID, name, intervalDays, graceDays, timezone)
}

// Get returns one switch owned by userID.
func (s *SwitchService) Get(ctx context.Context, userID, id string) (*domain.Switch, error) {
	sw, err := repo.GetSwitch(ctx, s.DB, id, userID)
	if err != nil {
		return nil, ErrSwitchNotFound
	}
	return sw, nil
}

// ListPage returns paginated switches for userID plus the total count.
func (s *SwitchService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Switch, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountSwitches(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListSwitchesPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update rewrites the mutable configuration of a switch. Status and the
// check-in/alert bookkeeping are untouched; those move through SetStatus,
// Checkin, and the evaluator.
func (s *SwitchService) Update(ctx context.Context, userID, id, name string, intervalDays, graceDays int, timezone string) (*domain.Switch, error) {
	tr := otel.Tracer("services/SwitchService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("switch.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	name, timezone, err := s.validateConfig(name, intervalDays, graceDays, timezone)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateSwitchConfig(ctx, s.DB, id, userID, name, intervalDays, graceDays, timezone); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSwitchNotFound
		}
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Delete removes a switch together with its message and attachments.
func (s *SwitchService) Delete(ctx context.Context, userID, id string) error {
	err := repo.DeleteSwitch(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSwitchNotFound
	}
	return err
}

// SetStatus moves a switch through the active/paused/completed state machine.
// Completed is terminal. Resuming a paused switch resets the baseline to the
// resume instant, so the switch cannot fire the moment it is reactivated.
func (s *SwitchService) SetStatus(ctx context.Context, userID, id, status string) (*domain.Switch, error) {
	tr := otel.Tracer("services/SwitchService")
	ctx, span := tr.Start(ctx, "SetStatus",
		trace.WithAttributes(
			attribute.String("switch.id", id),
			attribute.String("switch.status", status),
		),
	)
	defer span.End()

	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case domain.StatusActive, domain.StatusPaused, domain.StatusCompleted:
	default:
		return nil, ErrInvalidStatus
	}

	cur, err := repo.GetSwitch(ctx, s.DB, id, userID)
	if err != nil {
		return nil, ErrSwitchNotFound
	}
	if cur.Status == domain.StatusCompleted {
		return nil, ErrSwitchCompleted
	}
	if cur.Status == status {
		return cur, nil
	}

	// Resume counts as an implicit check-in.
	var baselineReset *time.Time
	if status == domain.StatusActive && cur.Status == domain.StatusPaused {
		now := time.Now().UTC()
		baselineReset = &now
	}

	if err := repo.UpdateSwitchStatus(ctx, s.DB, id, userID, status, baselineReset); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSwitchNotFound
		}
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Checkin advances the baseline of every active switch owned by userID and
// returns how many were touched. When sessionKey is non-empty, repeat calls
// within the session TTL are absorbed: the recorded result is replayed and
// repeated reports true.
func (s *SwitchService) Checkin(ctx context.Context, userID, sessionKey string) (touched int64, repeated bool, err error) {
	tr := otel.Tracer("services/SwitchService")
	ctx, span := tr.Start(ctx, "Checkin",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	now := time.Now().UTC()
	sessionKey = strings.TrimSpace(sessionKey)

	if sessionKey != "" {
		if stamp, err := repo.GetCheckinStamp(ctx, s.DB, userID, sessionKey, now); err == nil {
			return int64(stamp.Touched), true, nil
		}
	}

	touched, err = repo.TouchCheckins(ctx, s.DB, userID, now)
	if err != nil {
		return 0, false, err
	}

	if sessionKey != "" {
		ttl := s.SessionTTL
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		// A duplicate here means a concurrent request from the same session
		// already recorded; both performed a harmless baseline touch.
		if _, err := repo.CreateCheckinStamp(ctx, s.DB, userID, sessionKey, int(touched), ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			return touched, false, err
		}
	}
	return touched, false, nil
}

// SetMessage creates or replaces the message attached to a switch owned by
// userID. The body must be non-empty; the subject may be blank (the composer
// falls back to the default subject at send time).
func (s *SwitchService) SetMessage(ctx context.Context, userID, switchID, subject, body string) (*domain.Message, error) {
	if _, err := repo.GetSwitch(ctx, s.DB, switchID, userID); err != nil {
		return nil, ErrSwitchNotFound
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrMessageTooLong
	}
	return repo.UpsertMessage(ctx, s.DB, switchID, strings.TrimSpace(subject), body)
}

// GetMessage returns the message attached to a switch owned by userID.
func (s *SwitchService) GetMessage(ctx context.Context, userID, switchID string) (*domain.Message, error) {
	if _, err := repo.GetSwitch(ctx, s.DB, switchID, userID); err != nil {
		return nil, ErrSwitchNotFound
	}
	m, err := repo.GetMessageForSwitch(ctx, s.DB, switchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// ClearMessage removes the message attached to a switch owned by userID.
// Clearing a switch that has no message is not an error.
func (s *SwitchService) ClearMessage(ctx context.Context, userID, switchID string) error {
	if _, err := repo.GetSwitch(ctx, s.DB, switchID, userID); err != nil {
		return ErrSwitchNotFound
	}
	return repo.DeleteMessageForSwitch(ctx, s.DB, switchID)
}

// AttachRecipient links a recipient to a switch; both must belong to userID.
func (s *SwitchService) AttachRecipient(ctx context.Context, userID, switchID, recipientID string) error {
	if _, err := repo.GetSwitch(ctx, s.DB, switchID, userID); err != nil {
		return ErrSwitchNotFound
	}
	if _, err := repo.GetRecipient(ctx, s.DB, recipientID, userID); err != nil {
		return ErrRecipientNotFound
	}
	if _, err := repo.AttachRecipient(ctx, s.DB, switchID, recipientID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrAlreadyAttached
		}
		return err
	}
	return nil
}

// DetachRecipient removes the link between a switch and a recipient owned by
// userID.
func (s *SwitchService) DetachRecipient(ctx context.Context, userID, switchID, recipientID string) error {
	if _, err := repo.GetSwitch(ctx, s.DB, switchID, userID); err != nil {
		return ErrSwitchNotFound
	}
	err := repo.DetachRecipient(ctx, s.DB, switchID, recipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotAttached
	}
	return err
}

// Recipients returns the recipients attached to a switch owned by userID, in
// attachment order.
func (s *SwitchService) Recipients(ctx context.Context, userID, switchID string) ([]domain.Recipient, error) {
	if _, err := repo.GetSwitch(ctx, s.DB, switchID, userID); err != nil {
		return nil, ErrSwitchNotFound
	}
	return repo.ListRecipientsForSwitch(ctx, s.DB, switchID)
}

// validateConfig normalizes and validates the mutable switch configuration,
// returning the cleaned name and timezone.
func (s *SwitchService) validateConfig(name string, intervalDays, graceDays int, timezone string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultName
	}
	if s.MaxNameRunes > 0 && utf8.RuneCountInString(name) > s.MaxNameRunes {
		name = string([]rune(name)[:s.MaxNameRunes])
	}

	if !allowedIntervals[intervalDays] {
		return "", "", ErrInvalidInterval
	}
	if graceDays < 0 || graceDays > maxGraceDays {
		return "", "", ErrInvalidGrace
	}

	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return "", "", ErrInvalidTimezone
	}
	return name, timezone, nil
}
