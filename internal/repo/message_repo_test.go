package repo

import (
	"context"
	"testing"

	"github.com/afoster/go-switch-backend/internal/domain"
)

func TestUpsertMessage_CreateThenReplace(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{}, &domain.Message{})
	ctx := context.Background()

	s, _ := CreateSwitch(ctx, db, "u1", "s", 7, 0, "UTC")

	m1, err := UpsertMessage(ctx, db, s.ID, "first subject", "first body")
	if err != nil {
		t.Fatalf("UpsertMessage (create): %v", err)
	}
	if m1.ID == "" || m1.SwitchID != s.ID {
		t.Fatalf("unexpected message: %+v", m1)
	}

	m2, err := UpsertMessage(ctx, db, s.ID, "second subject", "second body")
	if err != nil {
		t.Fatalf("UpsertMessage (replace): %v", err)
	}
	if m2.ID != m1.ID {
		t.Fatalf("upsert created a second row: %s vs %s", m2.ID, m1.ID)
	}

	got, err := GetMessageForSwitch(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("GetMessageForSwitch: %v", err)
	}
	if got.Subject != "second subject" || got.Body != "second body" {
		t.Fatalf("replace did not stick: %+v", got)
	}

	var count int64
	db.Model(&domain.Message{}).Where("switch_id = ?", s.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 message row, got %d", count)
	}
}

func TestGetMessageForSwitch_Missing(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	if _, err := GetMessageForSwitch(context.Background(), db, "nope"); err != ErrNotFound {
		t.Fatalf("got %v; want ErrNotFound", err)
	}
}

func TestDeleteMessageForSwitch_Idempotent(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{}, &domain.Message{})
	ctx := context.Background()

	s, _ := CreateSwitch(ctx, db, "u1", "s", 7, 0, "UTC")
	if _, err := UpsertMessage(ctx, db, s.ID, "subj", "body"); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	if err := DeleteMessageForSwitch(ctx, db, s.ID); err != nil {
		t.Fatalf("DeleteMessageForSwitch: %v", err)
	}
	if _, err := GetMessageForSwitch(ctx, db, s.ID); err != ErrNotFound {
		t.Fatalf("message survived delete: %v", err)
	}
	// Deleting again is not an error.
	if err := DeleteMessageForSwitch(ctx, db, s.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
