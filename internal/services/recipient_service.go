// Package services – RecipientService
//
// This file implements RecipientService, which owns the per-user recipient
// address book. Addresses are validated with net/mail and deduplicated per
// owner on a case-folded form, so "Ada@Example.COM" and "ada@example.com"
// count as the same recipient.

package services

import (
	"context"
	"errors"
	netmail "net/mail"
	"strings"

	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/afoster/go-switch-backend/internal/domain"
	"github.com/afoster/go-switch-backend/internal/repo"
)

// emailFolder applies full Unicode case folding, which is stricter than
// lowercasing for addresses in non-ASCII scripts.
var emailFolder = cases.Fold()

// NormalizeEmail returns the canonical form used for per-owner uniqueness.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}

// RecipientService coordinates recipient persistence.
type RecipientService struct {
	DB *gorm.DB

	// MaxNameRunes caps the stored display name length. Zero disables the cap.
	MaxNameRunes int
}

// Create validates and inserts a recipient owned by userID.
func (s *RecipientService) Create(ctx context.Context, userID, name, email string) (*domain.Recipient, error) {
	email = strings.TrimSpace(email)
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	name = strings.TrimSpace(name)
	if s.MaxNameRunes > 0 {
		if runes := []rune(name); len(runes) > s.MaxNameRunes {
			name = string(runes[:s.MaxNameRunes])
		}
	}

	r, err := repo.CreateRecipient(ctx, s.DB, userID, name, email, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateRecipient
		}
		return nil, err
	}
	return r, nil
}

// Get returns one recipient owned by userID.
func (s *RecipientService) Get(ctx context.Context, userID, id string) (*domain.Recipient, error) {
	r, err := repo.GetRecipient(ctx, s.DB, id, userID)
	if err != nil {
		return nil, ErrRecipientNotFound
	}
	return r, nil
}

// List returns all recipients owned by userID, ordered by name.
func (s *RecipientService) List(ctx context.Context, userID string) ([]domain.Recipient, error) {
	return repo.ListRecipients(ctx, s.DB, userID)
}

// Delete removes a recipient and detaches it from every switch.
func (s *RecipientService) Delete(ctx context.Context, userID, id string) error {
	err := repo.DeleteRecipient(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRecipientNotFound
	}
	return err
}
