package models

import "time"

// Guest invite statuses. Expiry is computed lazily from the access window at
// read time; the stored status only changes through explicit transitions or
// the maintenance sweep.
const (
	GuestInviteStatusPending  = "pending"
	GuestInviteStatusAccepted = "accepted"
	GuestInviteStatusExpired  = "expired"
	GuestInviteStatusRevoked  = "revoked"
)

// GuestInvite grants a person time-boxed access to one agency's events.
type GuestInvite struct {
	BaseModel

	AgencyID  string `gorm:"type:uuid;not null;index" json:"agency_id"`
	InvitedBy string `gorm:"type:uuid;not null" json:"invited_by"`
	Email     string `gorm:"not null;index" json:"email"`

	// GuestUserID is bound once the invited email registers or logs in and
	// redeems the token.
	GuestUserID *string `gorm:"type:uuid;index" json:"guest_user_id,omitempty"`
	TokenHash   string  `gorm:"not null;uniqueIndex" json:"-"`

	Status string `gorm:"size:16;default:'pending';index" json:"status"`

	AccessStartDate time.Time `gorm:"not null" json:"access_start_date"`
	AccessEndDate   time.Time `gorm:"not null;index" json:"access_end_date"`

	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	RevokedBy      *string    `gorm:"type:uuid" json:"revoked_by,omitempty"`

	NotifyOnSubmission bool `gorm:"default:true" json:"notify_on_submission"`
	NotifyOnApproval   bool `gorm:"default:false" json:"notify_on_approval"`

	Permissions []GuestEventPermission `gorm:"foreignKey:GuestInviteID;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
}

// WindowContains reports whether the instant falls inside the access window,
// inclusive at both boundaries.
func (g *GuestInvite) WindowContains(now time.Time) bool {
	if g == nil {
		return false
	}
	return !now.Before(g.AccessStartDate) && !now.After(g.AccessEndDate)
}

// EffectiveStatus computes the display status at the given instant. Pending
// and accepted invites past their window read as expired without the stored
// status changing.
func (g *GuestInvite) EffectiveStatus(now time.Time) string {
	if g == nil {
		return GuestInviteStatusPending
	}
	switch g.Status {
	case GuestInviteStatusRevoked, GuestInviteStatusExpired:
		return g.Status
	}
	if now.After(g.AccessEndDate) {
		return GuestInviteStatusExpired
	}
	return g.Status
}
