package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GuestAuditLog is an immutable, append-only record of actions performed
// under a guest invite.
type GuestAuditLog struct {
	ID            string         `gorm:"primaryKey;type:uuid" json:"id"`
	GuestInviteID string         `gorm:"type:uuid;not null;index" json:"guest_invite_id"`
	EventID       *string        `gorm:"type:uuid;index" json:"event_id,omitempty"`
	SubmissionID  *string        `gorm:"type:uuid" json:"submission_id,omitempty"`
	Action        string         `gorm:"not null;index" json:"action"`
	Payload       datatypes.JSON `json:"payload"`
	IPAddress     string         `json:"ip_address"`
	UserAgent     string         `json:"user_agent"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}

func (g *GuestAuditLog) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
