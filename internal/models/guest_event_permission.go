package models

// GuestEventPermission grants one permission tier for one event, scoped to a
// guest invite. At most one grant exists per (invite, event) pair.
type GuestEventPermission struct {
	BaseModel

	GuestInviteID string       `gorm:"type:uuid;not null;uniqueIndex:idx_guest_event,priority:1" json:"guest_invite_id"`
	GuestInvite   *GuestInvite `json:"guest_invite,omitempty"`

	EventID string `gorm:"type:uuid;not null;uniqueIndex:idx_guest_event,priority:2" json:"event_id"`
	Event   *Event `json:"event,omitempty"`

	PermissionLevel string `gorm:"size:16;not null" json:"permission_level"`

	// DailyApprovalLimit bounds how many submissions the guest may approve
	// per day; nil means unlimited.
	DailyApprovalLimit *int `json:"daily_approval_limit,omitempty"`
}
