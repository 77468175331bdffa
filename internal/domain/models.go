// Package domain defines the persistence models for switches, messages, and
// recipients. These types are mapped with GORM and form the core data layer
// of the dead-man's-switch application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Switch status values. The evaluator only ever scans StatusActive rows;
// paused and completed switches are invisible to the due-set selection.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Switch represents one configured dead-man's-switch. The owner must check in
// every IntervalDays (plus GraceDays of slack) or the switch fires and its
// message is delivered to the attached recipients.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the switch owner; indexed for efficient retrieval.
//   - Name: human-readable label.
//   - Status: one of "active", "paused", "completed" (enforced by DB constraint).
//   - IntervalDays: check-in period in calendar days.
//   - GraceDays: extra buffer added to the interval before the switch fires.
//   - Timezone: IANA zone name used for display formatting only; deadline
//     arithmetic always operates on absolute instants.
//   - LastCheckinAt: moved forward by the check-in recorder; nil only for rows
//     predating the initial-baseline rule.
//   - LastAlertSentAt: set after a delivery cycle with at least one success;
//     the idempotency marker that suppresses re-alerting within a cycle.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Switch struct {
	ID              string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id"            gorm:"type:varchar(64);not null;index:idx_user_switches"`
	Name            string         `json:"name"               gorm:"type:varchar(255);not null;default:'New switch'"`
	Status          string         `json:"status"             gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','paused','completed')"`
	IntervalDays    int            `json:"interval_days"      gorm:"not null"`
	GraceDays       int            `json:"grace_days"         gorm:"not null;default:0"`
	Timezone        string         `json:"timezone"           gorm:"type:varchar(64);not null;default:'UTC'"`
	LastCheckinAt   *time.Time     `json:"last_checkin_at"`
	LastAlertSentAt *time.Time     `json:"last_alert_sent_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                  gorm:"index"`
}

// TableName returns the database table name for Switch.
func (Switch) TableName() string { return "switches" }

// Message holds the pre-written notification content for a switch (1:1).
// Subject and Body may embed the personalization tokens {recipient_name} and
// {recipient_first_name}, resolved per recipient at composition time.
type Message struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SwitchID  string         `json:"switch_id"  gorm:"type:char(36);not null;uniqueIndex:ux_message_switch"`
	Subject   string         `json:"subject"    gorm:"type:varchar(255);not null;default:''"`
	Body      string         `json:"body"       gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Switch is the owning switch. The message is cascade-deleted with it.
	Switch Switch `json:"-" gorm:"foreignKey:SwitchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Recipient is a named email address owned by a user, reusable across that
// user's switches. EmailNormalized stores the case-folded address so the
// per-owner uniqueness constraint is case-insensitive.
type Recipient struct {
	ID              string         `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID          string         `json:"user_id" gorm:"type:varchar(64);not null;index;uniqueIndex:ux_recipient_owner_email,priority:1"`
	Name            string         `json:"name"    gorm:"type:varchar(255);not null"`
	Email           string         `json:"email"   gorm:"type:varchar(320);not null"`
	EmailNormalized string         `json:"-"       gorm:"type:varchar(320);not null;uniqueIndex:ux_recipient_owner_email,priority:2"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"       gorm:"index"`
}

// TableName returns the database table name for Recipient.
func (Recipient) TableName() string { return "recipients" }

// SwitchRecipient joins switches to recipients (many-to-many). It carries no
// attributes beyond the two foreign keys and a creation timestamp.
type SwitchRecipient struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	SwitchID    string    `json:"switch_id"    gorm:"type:char(36);not null;index;uniqueIndex:ux_switch_recipient,priority:1"`
	RecipientID string    `json:"recipient_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_switch_recipient,priority:2"`
	CreatedAt   time.Time `json:"created_at"`

	Switch    Switch    `json:"-" gorm:"foreignKey:SwitchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Recipient Recipient `json:"-" gorm:"foreignKey:RecipientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SwitchRecipient.
func (SwitchRecipient) TableName() string { return "switch_recipients" }

// CheckinStamp records that a client session already performed its automatic
// check-in, keyed by (user_id, session_key). It lets the check-in endpoint
// no-op on repeats within the same session lifetime instead of rewriting
// every active switch on each dashboard load.
type CheckinStamp struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_checkin_user_session,priority:1"`
	SessionKey string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_checkin_user_session,priority:2"`
	Touched    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (CheckinStamp) TableName() string { return "checkin_stamps" }
