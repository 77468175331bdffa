package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/afoster/go-switch-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateSwitch_SetsInitialBaseline(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})

	start := time.Now().UTC().Add(-time.Minute)
	s, err := CreateSwitch(context.Background(), db, "u1", "My switch", 30, 2, "Europe/London")
	if err != nil {
		t.Fatalf("CreateSwitch: %v", err)
	}
	if s.ID == "" || s.UserID != "u1" || s.Status != domain.StatusActive {
		t.Fatalf("unexpected Switch fields: %+v", s)
	}
	if s.IntervalDays != 30 || s.GraceDays != 2 || s.Timezone != "Europe/London" {
		t.Fatalf("config fields not persisted: %+v", s)
	}
	if s.LastCheckinAt == nil || s.LastCheckinAt.Before(start) {
		t.Fatalf("initial baseline unset or stale: %v", s.LastCheckinAt)
	}
	if s.LastAlertSentAt != nil {
		t.Fatalf("new switch must have no alert stamp")
	}

	// round-trip
	var got domain.Switch
	if err := db.First(&got, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("load created switch: %v", err)
	}
	if got.Name != "My switch" || got.Status != domain.StatusActive {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetSwitch_OwnershipEnforced(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})
	s, err := CreateSwitch(context.Background(), db, "u1", "mine", 7, 0, "UTC")
	if err != nil {
		t.Fatalf("CreateSwitch: %v", err)
	}

	if _, err := GetSwitch(context.Background(), db, s.ID, "u1"); err != nil {
		t.Fatalf("owner fetch failed: %v", err)
	}
	if _, err := GetSwitch(context.Background(), db, s.ID, "u2"); err != ErrNotFound {
		t.Fatalf("cross-owner fetch: got %v; want ErrNotFound", err)
	}
}

func TestListActiveSwitches_FiltersStatus(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})
	ctx := context.Background()

	a, _ := CreateSwitch(ctx, db, "u1", "a", 7, 0, "UTC")
	b, _ := CreateSwitch(ctx, db, "u2", "b", 7, 0, "UTC")
	c, _ := CreateSwitch(ctx, db, "u1", "c", 7, 0, "UTC")
	if err := UpdateSwitchStatus(ctx, db, c.ID, "u1", domain.StatusPaused, nil); err != nil {
		t.Fatalf("pause: %v", err)
	}

	list, err := ListActiveSwitches(ctx, db)
	if err != nil {
		t.Fatalf("ListActiveSwitches: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 active switches, got %d", len(list))
	}
	ids := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Fatalf("wrong due-scan membership: %+v", list)
	}
}

func TestUpdateSwitchStatus_BaselineReset(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})
	ctx := context.Background()

	s, _ := CreateSwitch(ctx, db, "u1", "s", 7, 0, "UTC")
	if err := UpdateSwitchStatus(ctx, db, s.ID, "u1", domain.StatusPaused, nil); err != nil {
		t.Fatalf("pause: %v", err)
	}

	var paused domain.Switch
	if err := db.First(&paused, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if paused.Status != domain.StatusPaused {
		t.Fatalf("status = %q; want paused", paused.Status)
	}
	// Pausing preserves the baseline.
	if paused.LastCheckinAt == nil || !paused.LastCheckinAt.Equal(*s.LastCheckinAt) {
		t.Fatalf("pause must not move the baseline: %v vs %v", paused.LastCheckinAt, s.LastCheckinAt)
	}

	// Resuming rewrites it.
	resumeAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := UpdateSwitchStatus(ctx, db, s.ID, "u1", domain.StatusActive, &resumeAt); err != nil {
		t.Fatalf("resume: %v", err)
	}
	var resumed domain.Switch
	if err := db.First(&resumed, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if resumed.LastCheckinAt == nil || !resumed.LastCheckinAt.Equal(resumeAt) {
		t.Fatalf("resume must reset the baseline: %v", resumed.LastCheckinAt)
	}

	if err := UpdateSwitchStatus(ctx, db, "missing", "u1", domain.StatusPaused, nil); err != ErrNotFound {
		t.Fatalf("missing switch: got %v; want ErrNotFound", err)
	}
}

func TestTouchCheckins_OnlyActiveOwnedRows(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})
	ctx := context.Background()

	a, _ := CreateSwitch(ctx, db, "u1", "a", 7, 0, "UTC")
	b, _ := CreateSwitch(ctx, db, "u1", "b", 7, 0, "UTC")
	other, _ := CreateSwitch(ctx, db, "u2", "other", 7, 0, "UTC")
	if err := UpdateSwitchStatus(ctx, db, b.ID, "u1", domain.StatusPaused, nil); err != nil {
		t.Fatalf("pause: %v", err)
	}

	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	n, err := TouchCheckins(ctx, db, "u1", now)
	if err != nil {
		t.Fatalf("TouchCheckins: %v", err)
	}
	if n != 1 {
		t.Fatalf("touched %d rows; want 1", n)
	}

	var got domain.Switch
	_ = db.First(&got, "id = ?", a.ID).Error
	if got.LastCheckinAt == nil || !got.LastCheckinAt.Equal(now) {
		t.Fatalf("active switch baseline not advanced: %v", got.LastCheckinAt)
	}
	var gotOther domain.Switch
	_ = db.First(&gotOther, "id = ?", other.ID).Error
	if gotOther.LastCheckinAt.Equal(now) {
		t.Fatalf("check-in leaked across owners")
	}
}

func TestMarkAlerted_ConditionalCommit(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})
	ctx := context.Background()

	s, _ := CreateSwitch(ctx, db, "u1", "s", 7, 0, "UTC")
	base := *s.LastCheckinAt
	now := time.Now().UTC()

	// First committer wins.
	won, err := MarkAlerted(ctx, db, s.ID, base, now)
	if err != nil {
		t.Fatalf("MarkAlerted: %v", err)
	}
	if !won {
		t.Fatal("first conditional commit must win")
	}

	// A second run in the same cycle is a no-op.
	won, err = MarkAlerted(ctx, db, s.ID, base, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkAlerted (second): %v", err)
	}
	if won {
		t.Fatal("second conditional commit within the same cycle must lose")
	}

	// After a fresh check-in the baseline advances and the commit succeeds again.
	newBase := now.Add(time.Hour)
	if _, err := TouchCheckins(ctx, db, "u1", newBase); err != nil {
		t.Fatalf("TouchCheckins: %v", err)
	}
	won, err = MarkAlerted(ctx, db, s.ID, newBase, newBase.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("MarkAlerted (new cycle): %v", err)
	}
	if !won {
		t.Fatal("commit in a new cycle must win")
	}
}

func TestDeleteSwitch_RemovesDependents(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{}, &domain.Message{}, &domain.Recipient{}, &domain.SwitchRecipient{})
	ctx := context.Background()

	s, _ := CreateSwitch(ctx, db, "u1", "s", 7, 0, "UTC")
	if _, err := UpsertMessage(ctx, db, s.ID, "subj", "body"); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	r, err := CreateRecipient(ctx, db, "u1", "Ada", "ada@example.com", "ada@example.com")
	if err != nil {
		t.Fatalf("CreateRecipient: %v", err)
	}
	if _, err := AttachRecipient(ctx, db, s.ID, r.ID); err != nil {
		t.Fatalf("AttachRecipient: %v", err)
	}

	if err := DeleteSwitch(ctx, db, s.ID, "u1"); err != nil {
		t.Fatalf("DeleteSwitch: %v", err)
	}

	if _, err := GetSwitch(ctx, db, s.ID, "u1"); err != ErrNotFound {
		t.Fatalf("switch still visible after delete: %v", err)
	}
	if _, err := GetMessageForSwitch(ctx, db, s.ID); err != ErrNotFound {
		t.Fatalf("message still visible after delete: %v", err)
	}
	attached, err := ListRecipientsForSwitch(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("ListRecipientsForSwitch: %v", err)
	}
	if len(attached) != 0 {
		t.Fatalf("attachments survived switch delete: %+v", attached)
	}

	if err := DeleteSwitch(ctx, db, s.ID, "u1"); err != ErrNotFound {
		t.Fatalf("double delete: got %v; want ErrNotFound", err)
	}
}

func TestListSwitchesPage_And_Count(t *testing.T) {
	db := newRepoDB(t, &domain.Switch{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sw := domain.Switch{
			ID:           fmt.Sprintf("s%d", i),
			UserID:       "u1",
			Name:         fmt.Sprintf("switch %d", i),
			Status:       domain.StatusActive,
			IntervalDays: 7,
			CreatedAt:    time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}
		if err := db.Create(&sw).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	total, err := CountSwitches(ctx, db, "u1")
	if err != nil || total != 5 {
		t.Fatalf("CountSwitches = %d, %v; want 5", total, err)
	}

	page, err := ListSwitchesPage(ctx, db, "u1", 2, 2)
	if err != nil {
		t.Fatalf("ListSwitchesPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d; want 2", len(page))
	}
	// Descending by created_at: offset 2 of s4..s0 is s2, s1.
	if page[0].ID != "s2" || page[1].ID != "s1" {
		t.Fatalf("unexpected page order: %s, %s", page[0].ID, page[1].ID)
	}
}
