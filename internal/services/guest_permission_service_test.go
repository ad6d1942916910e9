package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/database/testutil"
	"github.com/mdaccula/postcontrol/internal/models"
)

func seedEvent(t *testing.T, db *gorm.DB, agencyID, name string) *models.Event {
	t.Helper()
	event := models.Event{
		AgencyID: agencyID,
		Name:     name,
		Platform: "instagram",
		IsActive: true,
	}
	require.NoError(t, db.Create(&event).Error)
	return &event
}

func seedAcceptedInvite(t *testing.T, db *gorm.DB, agencyID, guestUserID string, start, end time.Time) *models.GuestInvite {
	t.Helper()
	accepted := start
	invite := models.GuestInvite{
		AgencyID:        agencyID,
		InvitedBy:       "admin-1",
		Email:           guestUserID + "@example.com",
		GuestUserID:     &guestUserID,
		TokenHash:       "hash-" + guestUserID,
		Status:          models.GuestInviteStatusAccepted,
		AccessStartDate: start,
		AccessEndDate:   end,
		AcceptedAt:      &accepted,
	}
	require.NoError(t, db.Create(&invite).Error)
	return &invite
}

func TestGuestPermissionGrantAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	invite := seedAcceptedInvite(t, db, "agency-1", "user-9", now, now.Add(72*time.Hour))
	event := seedEvent(t, db, "agency-1", "Spring Launch")

	invalidator := &recordingInvalidator{}
	service, err := NewGuestPermissionService(db, nil, invalidator)
	require.NoError(t, err)

	limit := 5
	grant, err := service.Grant(context.Background(), GrantPermissionInput{
		GuestInviteID:      invite.ID,
		EventID:            event.ID,
		PermissionLevel:    "Moderator",
		DailyApprovalLimit: &limit,
	})
	require.NoError(t, err)
	require.Equal(t, "moderator", grant.PermissionLevel)
	require.Equal(t, []string{"user-9"}, invalidator.userIDs)

	_, err = service.Grant(context.Background(), GrantPermissionInput{
		GuestInviteID:   invite.ID,
		EventID:         event.ID,
		PermissionLevel: "viewer",
	})
	require.ErrorIs(t, err, ErrGuestPermissionExists)

	grants, err := service.List(context.Background(), invite.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.NotNil(t, grants[0].DailyApprovalLimit)
	require.Equal(t, 5, *grants[0].DailyApprovalLimit)
}

func TestGuestPermissionRejectsInvalidLevel(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	invite := seedAcceptedInvite(t, db, "agency-1", "user-9", now, now.Add(72*time.Hour))
	event := seedEvent(t, db, "agency-1", "Spring Launch")

	service, err := NewGuestPermissionService(db, nil, nil)
	require.NoError(t, err)

	_, err = service.Grant(context.Background(), GrantPermissionInput{
		GuestInviteID:   invite.ID,
		EventID:         event.ID,
		PermissionLevel: "owner",
	})
	require.ErrorIs(t, err, ErrInvalidPermissionLevel)
}

func TestGuestPermissionCrossAgencyEventDenied(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	invite := seedAcceptedInvite(t, db, "agency-1", "user-9", now, now.Add(72*time.Hour))
	foreign := seedEvent(t, db, "agency-2", "Other Agency Event")

	service, err := NewGuestPermissionService(db, nil, nil)
	require.NoError(t, err)

	_, err = service.Grant(context.Background(), GrantPermissionInput{
		GuestInviteID:   invite.ID,
		EventID:         foreign.ID,
		PermissionLevel: "viewer",
	})
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestGuestPermissionUpdateAndRevoke(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	invite := seedAcceptedInvite(t, db, "agency-1", "user-9", now, now.Add(72*time.Hour))
	event := seedEvent(t, db, "agency-1", "Spring Launch")

	invalidator := &recordingInvalidator{}
	service, err := NewGuestPermissionService(db, nil, invalidator)
	require.NoError(t, err)

	_, err = service.Grant(context.Background(), GrantPermissionInput{
		GuestInviteID:   invite.ID,
		EventID:         event.ID,
		PermissionLevel: "viewer",
	})
	require.NoError(t, err)

	updated, err := service.Update(context.Background(), UpdatePermissionInput{
		GuestInviteID:   invite.ID,
		EventID:         event.ID,
		PermissionLevel: "manager",
	})
	require.NoError(t, err)
	require.Equal(t, "manager", updated.PermissionLevel)

	require.NoError(t, service.Revoke(context.Background(), invite.ID, event.ID))
	require.Len(t, invalidator.userIDs, 3)

	grants, err := service.List(context.Background(), invite.ID)
	require.NoError(t, err)
	require.Empty(t, grants)

	require.ErrorIs(t,
		service.Revoke(context.Background(), invite.ID, event.ID),
		ErrGuestPermissionNotFound)
}
