package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mdaccula/postcontrol/internal/database/testutil"
	apperrors "github.com/mdaccula/postcontrol/pkg/errors"
)

func TestUserCreateAndAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	service, err := NewUserService(db, nil, WithUserClock(fixedClock(now)))
	require.NoError(t, err)

	user, err := service.Create(context.Background(), CreateUserInput{
		Email:       "Admin@Example.com",
		Password:    "correct-horse",
		DisplayName: "Admin",
		IsAdmin:     true,
	})
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", user.Email)
	require.NotEqual(t, "correct-horse", user.Password)

	_, err = service.Create(context.Background(), CreateUserInput{
		Email:    "admin@example.com",
		Password: "another-pass",
	})
	require.ErrorIs(t, err, ErrEmailTaken)

	authed, err := service.Authenticate(context.Background(), "admin@example.com", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, authed.LastLoginAt)
	require.True(t, authed.LastLoginAt.Equal(now))

	_, err = service.Authenticate(context.Background(), "admin@example.com", "wrong", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Unknown emails fail the same way as bad passwords.
	_, err = service.Authenticate(context.Background(), "nobody@example.com", "whatever", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserDisabledAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	service, err := NewUserService(db, nil)
	require.NoError(t, err)

	user, err := service.Create(context.Background(), CreateUserInput{
		Email:    "guest@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	require.NoError(t, service.SetActive(context.Background(), user.ID, false))

	_, err = service.Authenticate(context.Background(), "guest@example.com", "correct-horse", "")
	require.ErrorIs(t, err, ErrUserDisabled)
}

func TestEnsureGuestUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	service, err := NewUserService(db, nil)
	require.NoError(t, err)

	created, err := service.EnsureGuestUser(context.Background(), "guest@example.com", "correct-horse", "Guest")
	require.NoError(t, err)

	again, err := service.EnsureGuestUser(context.Background(), "guest@example.com", "different-pass", "Guest")
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)
}
