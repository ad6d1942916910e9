package guests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/database/testutil"
	"github.com/mdaccula/postcontrol/internal/models"
)

func seedInvite(t *testing.T, db *gorm.DB, userID, status string, start, end time.Time) *models.GuestInvite {
	t.Helper()

	invite := &models.GuestInvite{
		AgencyID:        "default",
		InvitedBy:       "admin",
		Email:           userID + "@example.com",
		TokenHash:       "hash-" + userID + status,
		Status:          status,
		AccessStartDate: start,
		AccessEndDate:   end,
	}
	if status == models.GuestInviteStatusAccepted {
		accepted := start
		invite.GuestUserID = &userID
		invite.AcceptedAt = &accepted
	}
	require.NoError(t, db.Create(invite).Error)
	return invite
}

func TestGuestRecordFiltersToAcceptedInvites(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	dir, err := NewDirectory(db)
	require.NoError(t, err)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	seedInvite(t, db, "alice", models.GuestInviteStatusAccepted, start, end)

	record, err := dir.GuestRecord(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, models.GuestInviteStatusAccepted, record.Status)
	require.Equal(t, "alice", *record.GuestUserID)

	// Pending and revoked invites are filtered out server-side.
	pending := seedInvite(t, db, "bob", models.GuestInviteStatusPending, start, end)
	pendingUser := "bob"
	require.NoError(t, db.Model(pending).Update("guest_user_id", &pendingUser).Error)

	_, err = dir.GuestRecord(ctx, "bob")
	require.ErrorIs(t, err, ErrNoGuestRecord)

	_, err = dir.GuestRecord(ctx, "nobody")
	require.ErrorIs(t, err, ErrNoGuestRecord)
}

func TestEventPermissionsJoinInviteWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	dir, err := NewDirectory(db)
	require.NoError(t, err)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	invite := seedInvite(t, db, "carol", models.GuestInviteStatusAccepted, start, end)

	limit := 5
	require.NoError(t, db.Create(&models.GuestEventPermission{
		GuestInviteID:      invite.ID,
		EventID:            "event-1",
		PermissionLevel:    "moderator",
		DailyApprovalLimit: &limit,
	}).Error)

	grants, err := dir.EventPermissions(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, "event-1", grants[0].EventID)
	require.Equal(t, "moderator", grants[0].PermissionLevel)
	require.Equal(t, models.GuestInviteStatusAccepted, grants[0].InviteStatus)
	require.True(t, grants[0].AccessStartDate.Equal(start))
	require.True(t, grants[0].AccessEndDate.Equal(end))
	require.NotNil(t, grants[0].DailyApprovalLimit)
	require.Equal(t, 5, *grants[0].DailyApprovalLimit)

	grants, err = dir.EventPermissions(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestResolverAgainstDatabaseDirectory(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	dir, err := NewDirectory(db)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	invite := seedInvite(t, db, "dave", models.GuestInviteStatusAccepted, start, end)
	require.NoError(t, db.Create(&models.GuestEventPermission{
		GuestInviteID:   invite.ID,
		EventID:         "event-9",
		PermissionLevel: "viewer",
	}).Error)

	resolver := newTestResolver(t, dir, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.True(t, resolver.IsActiveGuest(ctx, "dave"))
	require.True(t, resolver.HasPermission(ctx, "dave", "event-9", TierViewer))
	require.False(t, resolver.HasPermission(ctx, "dave", "event-9", TierModerator))
	require.Equal(t, []string{"event-9"}, resolver.AllowedEvents(ctx, "dave"))
}
