package models

import "time"

// Submission statuses.
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

// Submission is an influencer's proof-of-post screenshot awaiting review.
type Submission struct {
	BaseModel

	EventID string `gorm:"type:uuid;not null;index" json:"event_id"`
	Event   *Event `json:"event,omitempty"`

	InfluencerName   string `gorm:"not null" json:"influencer_name"`
	InfluencerHandle string `gorm:"index" json:"influencer_handle"`
	ScreenshotURL    string `gorm:"not null" json:"screenshot_url"`
	Caption          string `json:"caption"`

	Status string `gorm:"size:16;default:'pending';index" json:"status"`

	ReviewedBy *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	// ReviewedByGuest marks reviews performed under a guest invite so the
	// daily approval limit can be enforced per invite.
	ReviewedByGuest *string `gorm:"type:uuid;index" json:"reviewed_by_guest,omitempty"`
	RejectReason    string  `json:"reject_reason,omitempty"`
}
