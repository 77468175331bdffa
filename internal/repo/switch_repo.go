// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Switch
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The single exception is MarkAlerted,
// whose conditional-update shape IS the at-most-once guarantee and therefore
// lives next to the SQL it depends on.
//
// Error semantics:
//   - When a switch is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afoster/go-switch-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSwitch inserts a new Switch row owned by userID. The switch starts
// active with its check-in baseline set to the creation instant, so a freshly
// created switch is never immediately due.
func CreateSwitch(ctx context.Context, db *gorm.DB, userID, name string, intervalDays, graceDays int, timezone string) (*domain.Switch, error) {
	now := time.Now().UTC()
	s := &domain.Switch{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		Status:        domain.StatusActive,
		IntervalDays:  intervalDays,
		GraceDays:     graceDays,
		Timezone:      timezone,
		LastCheckinAt: &now,
		CreatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSwitch fetches a single switch by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound.
func GetSwitch(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Switch, error) {
	var s domain.Switch
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountSwitches returns the total number of switches owned by userID.
func CountSwitches(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Switch{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListSwitchesPage returns a paginated slice of switches for userID, ordered
// by creation time descending. Use CountSwitches to obtain the total for
// pagination metadata.
func ListSwitchesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Switch, error) {
	var out []domain.Switch
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateSwitchConfig updates the mutable configuration of a switch owned by
// userID. Status and bookkeeping timestamps are deliberately excluded; those
// move only through UpdateSwitchStatus, TouchCheckins, and MarkAlerted.
// Returns ErrNotFound if no row matched.
func UpdateSwitchConfig(ctx context.Context, db *gorm.DB, id, userID, name string, intervalDays, graceDays int, timezone string) error {
	res := db.WithContext(ctx).
		Model(&domain.Switch{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"name":          name,
			"interval_days": intervalDays,
			"grace_days":    graceDays,
			"timezone":      timezone,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateSwitchStatus moves a switch to the given status. When baselineReset is
// non-nil the check-in baseline is rewritten in the same statement; resuming a
// paused switch passes the resume instant here so the switch cannot fire the
// moment it is reactivated. Returns ErrNotFound if no row matched.
func UpdateSwitchStatus(ctx context.Context, db *gorm.DB, id, userID, status string, baselineReset *time.Time) error {
	updates := map[string]any{"status": status}
	if baselineReset != nil {
		updates["last_checkin_at"] = *baselineReset
	}
	res := db.WithContext(ctx).
		Model(&domain.Switch{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSwitch soft-deletes a switch together with its message and recipient
// attachments. Soft deletes do not ride the FK cascade, so the dependents are
// removed explicitly inside one transaction.
func DeleteSwitch(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Switch{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("switch_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("switch_id = ?", id).Delete(&domain.SwitchRecipient{}).Error
	})
}

// ListActiveSwitches returns every active switch across all owners. This is
// the evaluator's batch scan; it is not scoped to one user's session.
func ListActiveSwitches(ctx context.Context, db *gorm.DB) ([]domain.Switch, error) {
	var out []domain.Switch
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusActive).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// TouchCheckins sets last_checkin_at to now for all active switches owned by
// userID and reports how many rows were advanced. This is the check-in
// recorder's only write.
func TouchCheckins(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Switch{}).
		Where("user_id = ? AND status = ?", userID, domain.StatusActive).
		Update("last_checkin_at", now)
	return res.RowsAffected, res.Error
}

// MarkAlerted commits the per-cycle alert marker for a switch. The update is
// conditional on the stored marker still predating the cycle baseline, which
// closes the race between overlapping evaluator runs: the first committer
// wins and a false return means another run already handled this switch.
func MarkAlerted(ctx context.Context, db *gorm.DB, switchID string, base, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Switch{}).
		Where("id = ? AND (last_alert_sent_at IS NULL OR last_alert_sent_at < ?)", switchID, base).
		Update("last_alert_sent_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
