package models

import "time"

// Event is a marketing campaign run by an agency. Influencers attach
// proof-of-post submissions to it while it is active.
type Event struct {
	BaseModel

	AgencyID string `gorm:"type:uuid;not null;index" json:"agency_id"`
	Name     string `gorm:"not null" json:"name"`
	Platform string `gorm:"size:32" json:"platform"`

	GoalSubmissions int `gorm:"default:0" json:"goal_submissions"`

	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `gorm:"index" json:"ends_at"`
	IsActive bool      `gorm:"default:true;index" json:"is_active"`

	Submissions []Submission `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"submissions,omitempty"`
}
