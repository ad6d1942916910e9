package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/models"
)

var (
	// ErrEventNotFound indicates no event matches the id within the agency.
	ErrEventNotFound = errors.New("event: not found")
	// ErrEventNameTaken indicates the agency already runs an event with the name.
	ErrEventNameTaken = errors.New("event: name already in use")
)

// EventService manages marketing events and their lifecycle.
type EventService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// EventOption customises EventService behaviour.
type EventOption func(*EventService)

// WithEventClock injects a custom clock primarily for testing.
func WithEventClock(clock func() time.Time) EventOption {
	return func(s *EventService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB, audit *AuditService, opts ...EventOption) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	service := &EventService{db: db, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateEventInput describes the payload accepted by Create.
type CreateEventInput struct {
	AgencyID        string
	Name            string
	Platform        string
	GoalSubmissions int
	StartsAt        time.Time
	EndsAt          time.Time
}

// Create registers a new event for the agency.
func (s *EventService) Create(ctx context.Context, input CreateEventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("event service: name is required")
	}
	agencyID := strings.TrimSpace(input.AgencyID)
	if agencyID == "" {
		return nil, errors.New("event service: agency id is required")
	}
	if !input.StartsAt.IsZero() && !input.EndsAt.IsZero() && input.StartsAt.After(input.EndsAt) {
		return nil, errors.New("event service: start must not be after end")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("agency_id = ? AND name = ?", agencyID, name).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("event service: check name: %w", err)
	}
	if count > 0 {
		return nil, ErrEventNameTaken
	}

	event := models.Event{
		AgencyID:        agencyID,
		Name:            name,
		Platform:        strings.TrimSpace(input.Platform),
		GoalSubmissions: input.GoalSubmissions,
		StartsAt:        input.StartsAt,
		EndsAt:          input.EndsAt,
		IsActive:        true,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEventNameTaken
		}
		return nil, fmt.Errorf("event service: create event: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "event.create",
		Resource: event.ID,
		Result:   "success",
		Metadata: map[string]any{"name": name, "agency_id": agencyID},
	})

	return &event, nil
}

// Get loads one event scoped to the agency.
func (s *EventService) Get(ctx context.Context, agencyID, eventID string) (*models.Event, error) {
	ctx = ensureContext(ctx)

	var event models.Event
	err := s.db.WithContext(ctx).
		Where("id = ? AND agency_id = ?", strings.TrimSpace(eventID), strings.TrimSpace(agencyID)).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("event service: load event: %w", err)
	}
	return &event, nil
}

// GetByID loads one event without agency scoping. Used by guest views after
// the resolver has already authorised the event.
func (s *EventService) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	ctx = ensureContext(ctx)

	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", strings.TrimSpace(eventID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("event service: load event: %w", err)
	}
	return &event, nil
}

// List returns the agency's events, active ones first.
func (s *EventService) List(ctx context.Context, agencyID string, activeOnly bool) ([]models.Event, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("agency_id = ?", strings.TrimSpace(agencyID)).
		Order("is_active DESC, created_at DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event service: list events: %w", err)
	}
	return events, nil
}

// UpdateEventInput carries optional field updates for an event.
type UpdateEventInput struct {
	Name            *string
	Platform        *string
	GoalSubmissions *int
	StartsAt        *time.Time
	EndsAt          *time.Time
	IsActive        *bool
}

// Update applies partial updates to an event.
func (s *EventService) Update(ctx context.Context, agencyID, eventID string, input UpdateEventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	event, err := s.Get(ctx, agencyID, eventID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("event service: name is required")
		}
		updates["name"] = name
	}
	if input.Platform != nil {
		updates["platform"] = strings.TrimSpace(*input.Platform)
	}
	if input.GoalSubmissions != nil {
		updates["goal_submissions"] = *input.GoalSubmissions
	}
	if input.StartsAt != nil {
		updates["starts_at"] = *input.StartsAt
	}
	if input.EndsAt != nil {
		updates["ends_at"] = *input.EndsAt
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return event, nil
	}

	if err := s.db.WithContext(ctx).Model(event).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEventNameTaken
		}
		return nil, fmt.Errorf("event service: update event: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "event.update",
		Resource: event.ID,
		Result:   "success",
	})

	return s.Get(ctx, agencyID, eventID)
}

// Delete removes an event and, via the schema's cascade, its submissions.
func (s *EventService) Delete(ctx context.Context, agencyID, eventID string) error {
	ctx = ensureContext(ctx)

	event, err := s.Get(ctx, agencyID, eventID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(event).Error; err != nil {
		return fmt.Errorf("event service: delete event: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "event.delete",
		Resource: event.ID,
		Result:   "success",
	})

	return nil
}

// DeactivateEnded flags events whose end date has passed as inactive. It runs
// from the maintenance scheduler and returns the number of rows changed.
func (s *EventService) DeactivateEnded(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("is_active = ? AND ends_at != ? AND ends_at < ?", true, time.Time{}, s.now()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("event service: deactivate ended: %w", result.Error)
	}
	return result.RowsAffected, nil
}
