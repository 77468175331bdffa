// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the CheckinStamp
// model, which dedupes automatic check-ins within a client session.
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

// GetCheckinStamp returns a non-expired stamp or ErrNotFound.
func GetCheckinStamp(ctx context.Context, db *gorm.DB, userID, sessionKey string, now time.Time) (*domain.CheckinStamp, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return nil, ErrNotFound
	}
	var rec domain.CheckinStamp
	err := db.WithContext(ctx).
		Where("user_id = ? AND session_key = ? AND expires_at > ?", userID, sessionKey, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateCheckinStamp inserts a stamp and returns ErrDuplicate on unique
// violation (a concurrent request from the same session won the race).
func CreateCheckinStamp(ctx context.Context, db *gorm.DB, userID, sessionKey string, touched int, ttl time.Duration) (*domain.CheckinStamp, error) {
	now := time.Now().UTC()
	rec := &domain.CheckinStamp{
		ID:         uuid.NewString(),
		UserID:     userID,
		SessionKey: sessionKey,
		Touched:    touched,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredCheckinStamps deletes stamps whose TTL elapsed before now and
// reports how many rows were removed. Invoked from the maintenance schedule.
func PurgeExpiredCheckinStamps(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.CheckinStamp{})
	return res.RowsAffected, res.Error
}
