package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mdaccula/postcontrol/internal/database/testutil"
)

func TestEventCreateAndGet(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	service, err := NewEventService(db, nil)
	require.NoError(t, err)

	event, err := service.Create(context.Background(), CreateEventInput{
		AgencyID:        "agency-1",
		Name:            "Spring Launch",
		Platform:        "tiktok",
		GoalSubmissions: 100,
	})
	require.NoError(t, err)
	require.True(t, event.IsActive)

	_, err = service.Create(context.Background(), CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Spring Launch",
	})
	require.ErrorIs(t, err, ErrEventNameTaken)

	loaded, err := service.Get(context.Background(), "agency-1", event.ID)
	require.NoError(t, err)
	require.Equal(t, "Spring Launch", loaded.Name)

	// Another agency cannot read this event.
	_, err = service.Get(context.Background(), "agency-2", event.ID)
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventUpdate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	service, err := NewEventService(db, nil)
	require.NoError(t, err)

	event, err := service.Create(context.Background(), CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Spring Launch",
	})
	require.NoError(t, err)

	name := "Summer Launch"
	active := false
	updated, err := service.Update(context.Background(), "agency-1", event.ID, UpdateEventInput{
		Name:     &name,
		IsActive: &active,
	})
	require.NoError(t, err)
	require.Equal(t, "Summer Launch", updated.Name)
	require.False(t, updated.IsActive)
}

func TestEventDeactivateEnded(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	service, err := NewEventService(db, nil, WithEventClock(fixedClock(now)))
	require.NoError(t, err)

	ended, err := service.Create(context.Background(), CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Finished Campaign",
		StartsAt: now.Add(-10 * 24 * time.Hour),
		EndsAt:   now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	running, err := service.Create(context.Background(), CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Running Campaign",
		StartsAt: now.Add(-24 * time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	// No end date means the event never auto-deactivates.
	openEnded, err := service.Create(context.Background(), CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Evergreen Campaign",
	})
	require.NoError(t, err)

	changed, err := service.DeactivateEnded(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	for _, tc := range []struct {
		id     string
		active bool
	}{
		{ended.ID, false},
		{running.ID, true},
		{openEnded.ID, true},
	} {
		event, err := service.Get(context.Background(), "agency-1", tc.id)
		require.NoError(t, err)
		require.Equal(t, tc.active, event.IsActive)
	}
}

func TestEventDeleteCascadesSubmissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	events, err := NewEventService(db, nil)
	require.NoError(t, err)
	submissions, err := NewSubmissionService(db, nil)
	require.NoError(t, err)

	event, err := events.Create(context.Background(), CreateEventInput{
		AgencyID: "agency-1",
		Name:     "Spring Launch",
	})
	require.NoError(t, err)

	_, err = submissions.Create(context.Background(), CreateSubmissionInput{
		EventID:        event.ID,
		InfluencerName: "Dana",
		ScreenshotURL:  "https://cdn.example.com/shot.png",
	})
	require.NoError(t, err)

	require.NoError(t, events.Delete(context.Background(), "agency-1", event.ID))

	_, total, err := submissions.List(context.Background(), SubmissionListOptions{
		Filters: SubmissionFilters{EventID: event.ID},
	})
	require.NoError(t, err)
	require.Zero(t, total)
}
