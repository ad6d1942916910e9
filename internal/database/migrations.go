package database

import (
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Agency{},
		&models.Event{},
		&models.Submission{},
		&models.GuestInvite{},
		&models.GuestEventPermission{},
		&models.GuestAuditLog{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// SeedData populates the default agency used by single-tenant installs.
func SeedData(db *gorm.DB) error {
	defaultAgency := models.Agency{
		BaseModel: models.BaseModel{ID: "default"},
		Name:      "Default Agency",
		OwnerID:   "system",
	}

	return db.Where(models.Agency{BaseModel: models.BaseModel{ID: defaultAgency.ID}}).
		Attrs(defaultAgency).
		FirstOrCreate(&models.Agency{}).Error
}
