// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model (the pre-written notification content, at most one per switch).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afoster/go-switch-backend/internal/domain"
)

// UpsertMessage creates or replaces the message attached to switchID.
// The 1:1 relationship is keyed by switch id, so an existing row is updated
// in place rather than duplicated.
func UpsertMessage(ctx context.Context, db *gorm.DB, switchID, subject, body string) (*domain.Message, error) {
	var existing domain.Message
	err := db.WithContext(ctx).Where("switch_id = ?", switchID).First(&existing).Error
	switch {
	case err == nil:
		existing.Subject = subject
		existing.Body = body
		if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		m := &domain.Message{
			ID:        uuid.NewString(),
			SwitchID:  switchID,
			Subject:   subject,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(m).Error; err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, err
	}
}

// GetMessageForSwitch returns the message attached to switchID, or
// ErrNotFound when the switch has no message configured.
func GetMessageForSwitch(ctx context.Context, db *gorm.DB, switchID string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("switch_id = ?", switchID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMessageForSwitch removes the message attached to switchID. Deleting a
// message that does not exist is not an error.
func DeleteMessageForSwitch(ctx context.Context, db *gorm.DB, switchID string) error {
	return db.WithContext(ctx).Where("switch_id = ?", switchID).Delete(&domain.Message{}).Error
}
