// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipient
// model and the switch↔recipient join table.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afoster/go-switch-backend/internal/domain"
)

// ErrDuplicate indicates a uniqueness violation: a recipient email already
// registered for the owner, or a recipient already attached to a switch.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// CreateRecipient inserts a recipient owned by userID. emailNormalized must be
// the case-folded address (the service layer owns the folding rule); the
// per-owner unique index on it surfaces as ErrDuplicate.
func CreateRecipient(ctx context.Context, db *gorm.DB, userID, name, email, emailNormalized string) (*domain.Recipient, error) {
	r := &domain.Recipient{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            name,
		Email:           email,
		EmailNormalized: emailNormalized,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// GetRecipient fetches a recipient by ID ensuring it belongs to userID.
func GetRecipient(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recipient, error) {
	var r domain.Recipient
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecipients returns all recipients owned by userID, ordered by name.
func ListRecipients(ctx context.Context, db *gorm.DB, userID string) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc, created_at asc").
		Find(&out).Error
	return out, err
}

// DeleteRecipient soft-deletes a recipient and detaches it from every switch.
// Returns ErrNotFound if no row matched.
func DeleteRecipient(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Recipient{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("recipient_id = ?", id).Delete(&domain.SwitchRecipient{}).Error
	})
}

// AttachRecipient links a recipient to a switch. An existing link surfaces as
// ErrDuplicate via the composite unique index.
func AttachRecipient(ctx context.Context, db *gorm.DB, switchID, recipientID string) (*domain.SwitchRecipient, error) {
	sr := &domain.SwitchRecipient{
		ID:          uuid.NewString(),
		SwitchID:    switchID,
		RecipientID: recipientID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(sr).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return sr, nil
}

// DetachRecipient removes the link between a switch and a recipient.
// Returns ErrNotFound if no link existed.
func DetachRecipient(ctx context.Context, db *gorm.DB, switchID, recipientID string) error {
	res := db.WithContext(ctx).
		Where("switch_id = ? AND recipient_id = ?", switchID, recipientID).
		Delete(&domain.SwitchRecipient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListRecipientsForSwitch returns the recipients attached to switchID,
// in attachment order. Soft-deleted recipients are excluded by the join.
func ListRecipientsForSwitch(ctx context.Context, db *gorm.DB, switchID string) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := db.WithContext(ctx).
		Model(&domain.Recipient{}).
		Joins("JOIN switch_recipients sr ON sr.recipient_id = recipients.id").
		Where("sr.switch_id = ?", switchID).
		Order("sr.created_at asc").
		Find(&out).Error
	return out, err
}
