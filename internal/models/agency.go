package models

import "gorm.io/datatypes"

// Agency is the tenant that owns events, submissions, and guest invites.
type Agency struct {
	BaseModel

	Name     string         `gorm:"not null;uniqueIndex" json:"name"`
	OwnerID  string         `gorm:"type:uuid;not null" json:"owner_id"`
	Settings datatypes.JSON `json:"settings"`

	Users  []User  `gorm:"foreignKey:AgencyID" json:"users,omitempty"`
	Events []Event `gorm:"foreignKey:AgencyID" json:"events,omitempty"`
}
