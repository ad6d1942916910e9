package guests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/models"
)

// ErrNoGuestRecord indicates the user holds no accepted guest invite.
var ErrNoGuestRecord = errors.New("guests: no guest record")

// EventGrant is a per-event permission joined with the owning invite's
// status and access window, as returned by the directory read contract.
type EventGrant struct {
	GuestInviteID      string    `json:"guest_invite_id"`
	EventID            string    `json:"event_id"`
	PermissionLevel    string    `json:"permission_level"`
	DailyApprovalLimit *int      `json:"daily_approval_limit,omitempty"`
	InviteStatus       string    `json:"invite_status"`
	AccessStartDate    time.Time `json:"access_start_date"`
	AccessEndDate      time.Time `json:"access_end_date"`
}

// Directory is the read contract against the guest invite store. Both fetches
// filter server-side to invites with status = accepted; the resolver re-checks
// status and window bounds regardless.
type Directory interface {
	// GuestRecord returns the accepted guest invite bound to the user, or
	// ErrNoGuestRecord when none exists.
	GuestRecord(ctx context.Context, userID string) (*models.GuestInvite, error)
	// EventPermissions returns the user's per-event grants joined with the
	// owning invite's status and access window.
	EventPermissions(ctx context.Context, userID string) ([]EventGrant, error)
}

type gormDirectory struct {
	db *gorm.DB
}

// NewDirectory constructs the database-backed Directory.
func NewDirectory(db *gorm.DB) (Directory, error) {
	if db == nil {
		return nil, errors.New("guests: db is required")
	}
	return &gormDirectory{db: db}, nil
}

func (d *gormDirectory) GuestRecord(ctx context.Context, userID string) (*models.GuestInvite, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoGuestRecord
	}

	var invite models.GuestInvite
	err := d.db.WithContext(ctx).
		Where("guest_user_id = ? AND status = ?", userID, models.GuestInviteStatusAccepted).
		Order("accepted_at DESC").
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoGuestRecord
	}
	if err != nil {
		return nil, fmt.Errorf("guests: fetch guest record: %w", err)
	}

	return &invite, nil
}

func (d *gormDirectory) EventPermissions(ctx context.Context, userID string) ([]EventGrant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	var grants []EventGrant
	err := d.db.WithContext(ctx).
		Table("guest_event_permissions").
		Select(`guest_event_permissions.guest_invite_id,
			guest_event_permissions.event_id,
			guest_event_permissions.permission_level,
			guest_event_permissions.daily_approval_limit,
			guest_invites.status AS invite_status,
			guest_invites.access_start_date,
			guest_invites.access_end_date`).
		Joins("JOIN guest_invites ON guest_invites.id = guest_event_permissions.guest_invite_id").
		Where("guest_invites.guest_user_id = ? AND guest_invites.status = ?", userID, models.GuestInviteStatusAccepted).
		Order("guest_event_permissions.created_at").
		Scan(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("guests: fetch event permissions: %w", err)
	}

	return grants, nil
}
