package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mdaccula/postcontrol/internal/database/testutil"
	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/pkg/crypto"
	"github.com/mdaccula/postcontrol/pkg/mail"
)

type recordingMailer struct {
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, message mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, message)
	return nil
}

type recordingInvalidator struct {
	userIDs []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.userIDs = append(r.userIDs, userID)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGuestInviteCreateAndValidate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mailer := &recordingMailer{}
	service, err := NewGuestInviteService(db, mailer, nil,
		WithInviteBaseURL("https://app.example.com/"),
		WithInviteClock(fixedClock(now)))
	require.NoError(t, err)

	invite, token, link, err := service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "Guest@Example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "guest@example.com", invite.Email)
	require.Equal(t, models.GuestInviteStatusPending, invite.Status)
	require.Equal(t, crypto.HashToken(token), invite.TokenHash)
	require.Contains(t, link, "https://app.example.com/invite/accept?token=")

	require.Len(t, mailer.messages, 1)
	require.Equal(t, []string{"guest@example.com"}, mailer.messages[0].To)

	resolved, err := service.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, invite.ID, resolved.ID)

	_, err = service.ValidateToken(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrGuestInviteNotFound)
}

func TestGuestInviteRejectsMalformedWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	service, err := NewGuestInviteService(db, nil, nil, WithInviteClock(fixedClock(now)))
	require.NoError(t, err)

	input := CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now.Add(48 * time.Hour),
		AccessEndDate:   now.Add(24 * time.Hour),
	}
	_, _, _, err = service.CreateInvite(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidAccessWindow)

	input.AccessStartDate = now.Add(-72 * time.Hour)
	input.AccessEndDate = now.Add(-24 * time.Hour)
	_, _, _, err = service.CreateInvite(context.Background(), input)
	require.ErrorIs(t, err, ErrInvalidAccessWindow)
}

func TestGuestInviteDuplicatePending(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	service, err := NewGuestInviteService(db, nil, nil, WithInviteClock(fixedClock(now)))
	require.NoError(t, err)

	input := CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	}
	_, _, _, err = service.CreateInvite(context.Background(), input)
	require.NoError(t, err)

	_, _, _, err = service.CreateInvite(context.Background(), input)
	require.ErrorIs(t, err, ErrGuestInvitePending)
}

func TestGuestInviteAcceptLifecycle(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	invalidator := &recordingInvalidator{}
	service, err := NewGuestInviteService(db, nil, nil,
		WithInviteClock(fixedClock(now)),
		WithInviteCacheInvalidator(invalidator))
	require.NoError(t, err)

	invite, _, _, err := service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	accepted, err := service.AcceptInvite(context.Background(), invite.ID, "user-9")
	require.NoError(t, err)
	require.Equal(t, models.GuestInviteStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.GuestUserID)
	require.Equal(t, "user-9", *accepted.GuestUserID)
	require.NotNil(t, accepted.AcceptedAt)
	require.Equal(t, []string{"user-9"}, invalidator.userIDs)

	_, err = service.AcceptInvite(context.Background(), invite.ID, "user-10")
	require.ErrorIs(t, err, ErrGuestInviteAlreadyUsed)
}

func TestGuestInviteExpiredLazily(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	clock := now
	service, err := NewGuestInviteService(db, nil, nil,
		WithInviteClock(func() time.Time { return clock }))
	require.NoError(t, err)

	invite, token, _, err := service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	clock = now.Add(48 * time.Hour)

	_, err = service.ValidateToken(context.Background(), token)
	require.ErrorIs(t, err, ErrGuestInviteExpired)

	_, err = service.AcceptInvite(context.Background(), invite.ID, "user-9")
	require.ErrorIs(t, err, ErrGuestInviteExpired)

	// The stored row still says pending; expiry is computed at read time.
	var stored models.GuestInvite
	require.NoError(t, db.First(&stored, "id = ?", invite.ID).Error)
	require.Equal(t, models.GuestInviteStatusPending, stored.Status)
	require.Equal(t, models.GuestInviteStatusExpired, stored.EffectiveStatus(clock))
}

func TestGuestInviteRevoke(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	invalidator := &recordingInvalidator{}
	service, err := NewGuestInviteService(db, nil, nil,
		WithInviteClock(fixedClock(now)),
		WithInviteCacheInvalidator(invalidator))
	require.NoError(t, err)

	invite, token, _, err := service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, err = service.AcceptInvite(context.Background(), invite.ID, "user-9")
	require.NoError(t, err)

	require.NoError(t, service.RevokeInvite(context.Background(), invite.ID, "admin-1"))
	require.Equal(t, []string{"user-9", "user-9"}, invalidator.userIDs)

	_, err = service.ValidateToken(context.Background(), token)
	require.ErrorIs(t, err, ErrGuestInviteRevoked)

	require.ErrorIs(t, service.RevokeInvite(context.Background(), invite.ID, "admin-1"), ErrGuestInviteRevoked)
}

func TestGuestInviteUpdateWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	service, err := NewGuestInviteService(db, nil, nil, WithInviteClock(fixedClock(now)))
	require.NoError(t, err)

	invite, _, _, err := service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	newStart := now.Add(-24 * time.Hour)
	newEnd := now.Add(7 * 24 * time.Hour)
	updated, err := service.UpdateWindow(context.Background(), invite.ID, newStart, newEnd)
	require.NoError(t, err)
	require.True(t, updated.AccessStartDate.Equal(newStart))
	require.True(t, updated.AccessEndDate.Equal(newEnd))

	_, err = service.UpdateWindow(context.Background(), invite.ID, newEnd, newStart)
	require.ErrorIs(t, err, ErrInvalidAccessWindow)
}

func TestGuestInviteResendRotatesToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mailer := &recordingMailer{}
	service, err := NewGuestInviteService(db, mailer, nil, WithInviteClock(fixedClock(now)))
	require.NoError(t, err)

	invite, firstToken, _, err := service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "guest@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, secondToken, _, err := service.ResendInvite(context.Background(), invite.ID)
	require.NoError(t, err)
	require.NotEqual(t, firstToken, secondToken)
	require.Len(t, mailer.messages, 2)

	_, err = service.ValidateToken(context.Background(), firstToken)
	require.ErrorIs(t, err, ErrGuestInviteNotFound)

	_, err = service.ValidateToken(context.Background(), secondToken)
	require.NoError(t, err)
}

func TestGuestInviteListEffectiveStatus(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	clock := now
	service, err := NewGuestInviteService(db, nil, nil,
		WithInviteClock(func() time.Time { return clock }))
	require.NoError(t, err)

	_, _, _, err = service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "short@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, _, _, err = service.CreateInvite(context.Background(), CreateGuestInviteInput{
		AgencyID:        "agency-1",
		InvitedBy:       "admin-1",
		Email:           "long@example.com",
		AccessStartDate: now,
		AccessEndDate:   now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	clock = now.Add(72 * time.Hour)

	expired, err := service.List(context.Background(), "agency-1", models.GuestInviteStatusExpired, "")
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "short@example.com", expired[0].Email)

	pending, err := service.List(context.Background(), "agency-1", models.GuestInviteStatusPending, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "long@example.com", pending[0].Email)

	matches, err := service.List(context.Background(), "agency-1", "", "long@")
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
