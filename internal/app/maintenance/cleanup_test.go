package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testutil "github.com/mdaccula/postcontrol/internal/database/testutil"
	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/internal/services"
)

func TestSweepExpiredInvites(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

	longExpired := models.GuestInvite{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "stale@example.com",
		TokenHash:       "hash-stale",
		Status:          models.GuestInviteStatusPending,
		AccessStartDate: now.Add(-10 * 24 * time.Hour),
		AccessEndDate:   now.Add(-3 * 24 * time.Hour),
	}
	// Expired less than a day ago; readers already see it as expired, the
	// sweep leaves it alone until the grace period passes.
	justExpired := models.GuestInvite{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "recent@example.com",
		TokenHash:       "hash-recent",
		Status:          models.GuestInviteStatusPending,
		AccessStartDate: now.Add(-2 * 24 * time.Hour),
		AccessEndDate:   now.Add(-time.Hour),
	}
	active := models.GuestInvite{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "active@example.com",
		TokenHash:       "hash-active",
		Status:          models.GuestInviteStatusPending,
		AccessStartDate: now.Add(-time.Hour),
		AccessEndDate:   now.Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&longExpired).Error)
	require.NoError(t, db.Create(&justExpired).Error)
	require.NoError(t, db.Create(&active).Error)

	swept, err := SweepExpiredInvites(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	var stored models.GuestInvite
	require.NoError(t, db.First(&stored, "id = ?", longExpired.ID).Error)
	require.Equal(t, models.GuestInviteStatusExpired, stored.Status)

	stored = models.GuestInvite{}
	require.NoError(t, db.First(&stored, "id = ?", justExpired.ID).Error)
	require.Equal(t, models.GuestInviteStatusPending, stored.Status)

	stored = models.GuestInvite{}
	require.NoError(t, db.First(&stored, "id = ?", active.ID).Error)
	require.Equal(t, models.GuestInviteStatusPending, stored.Status)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	events, err := services.NewEventService(db, audit,
		services.WithEventClock(func() time.Time { return now }))
	require.NoError(t, err)

	ended, err := events.Create(context.Background(), services.CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Finished Campaign",
		StartsAt: now.Add(-10 * 24 * time.Hour),
		EndsAt:   now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	old := models.AuditLog{Action: "auth.login", Result: "success"}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Model(&old).Update("created_at", now.AddDate(0, 0, -120)).Error)

	cleaner := NewCleaner(db, events, audit,
		WithNow(func() time.Time { return now }),
		WithAuditRetentionDays(90))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	refreshed, err := events.Get(context.Background(), "agency-1", ended.ID)
	require.NoError(t, err)
	require.False(t, refreshed.IsActive)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&auditCount).Error)
	require.Zero(t, auditCount)
}
