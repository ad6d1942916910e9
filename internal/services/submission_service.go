package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/pkg/metrics"
)

var (
	// ErrSubmissionNotFound indicates no submission matches the id.
	ErrSubmissionNotFound = errors.New("submission: not found")
	// ErrSubmissionReviewed indicates the submission already carries a decision.
	ErrSubmissionReviewed = errors.New("submission: already reviewed")
	// ErrEventClosed rejects new submissions for inactive events.
	ErrEventClosed = errors.New("submission: event is closed")
	// ErrDailyApprovalLimit signals the guest exhausted today's approval quota.
	ErrDailyApprovalLimit = errors.New("submission: daily approval limit reached")
	// ErrInvalidReviewDecision rejects decisions outside approved/rejected.
	ErrInvalidReviewDecision = errors.New("submission: decision must be approved or rejected")
)

// SubmissionService manages influencer submissions and their review flow.
type SubmissionService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// SubmissionOption customises SubmissionService behaviour.
type SubmissionOption func(*SubmissionService)

// WithSubmissionClock injects a custom clock primarily for testing.
func WithSubmissionClock(clock func() time.Time) SubmissionOption {
	return func(s *SubmissionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(db *gorm.DB, audit *AuditService, opts ...SubmissionOption) (*SubmissionService, error) {
	if db == nil {
		return nil, errors.New("submission service: db is required")
	}
	service := &SubmissionService{db: db, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateSubmissionInput describes an influencer's proof-of-post payload.
type CreateSubmissionInput struct {
	EventID          string
	InfluencerName   string
	InfluencerHandle string
	ScreenshotURL    string
	Caption          string
}

// Create records a new pending submission against an active event.
func (s *SubmissionService) Create(ctx context.Context, input CreateSubmissionInput) (*models.Submission, error) {
	ctx = ensureContext(ctx)

	eventID := strings.TrimSpace(input.EventID)
	if eventID == "" {
		return nil, errors.New("submission service: event id is required")
	}
	if strings.TrimSpace(input.InfluencerName) == "" {
		return nil, errors.New("submission service: influencer name is required")
	}
	if strings.TrimSpace(input.ScreenshotURL) == "" {
		return nil, errors.New("submission service: screenshot url is required")
	}

	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("submission service: load event: %w", err)
	}
	if !event.IsActive {
		return nil, ErrEventClosed
	}

	submission := models.Submission{
		EventID:          eventID,
		InfluencerName:   strings.TrimSpace(input.InfluencerName),
		InfluencerHandle: strings.TrimSpace(input.InfluencerHandle),
		ScreenshotURL:    strings.TrimSpace(input.ScreenshotURL),
		Caption:          input.Caption,
		Status:           models.SubmissionStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		return nil, fmt.Errorf("submission service: create submission: %w", err)
	}

	return &submission, nil
}

// SubmissionFilters narrows List results.
type SubmissionFilters struct {
	EventID  string
	EventIDs []string
	Status   string
	Handle   string
}

// List returns submissions matching the filters, newest first. Guest callers
// pass their allowed event ids via EventIDs so results never cross the grant
// boundary; an empty EventIDs slice with Scoped set yields no rows.
type SubmissionListOptions struct {
	Filters  SubmissionFilters
	Scoped   bool
	Page     int
	PageSize int
}

// List queries submissions using the provided options and reports the total
// match count for pagination.
func (s *SubmissionService) List(ctx context.Context, opts SubmissionListOptions) ([]models.Submission, int64, error) {
	ctx = ensureContext(ctx)

	if opts.Scoped && len(opts.Filters.EventIDs) == 0 {
		return []models.Submission{}, 0, nil
	}

	query := s.db.WithContext(ctx).Model(&models.Submission{})
	if eventID := strings.TrimSpace(opts.Filters.EventID); eventID != "" {
		query = query.Where("event_id = ?", eventID)
	}
	if len(opts.Filters.EventIDs) > 0 {
		query = query.Where("event_id IN ?", opts.Filters.EventIDs)
	}
	if status := strings.TrimSpace(opts.Filters.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if handle := strings.TrimSpace(opts.Filters.Handle); handle != "" {
		query = query.Where("influencer_handle LIKE ?", "%"+handle+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("submission service: count submissions: %w", err)
	}

	page, pageSize := normalisePage(opts.Page, opts.PageSize)
	var submissions []models.Submission
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&submissions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("submission service: list submissions: %w", err)
	}

	return submissions, total, nil
}

// Get loads a single submission.
func (s *SubmissionService) Get(ctx context.Context, submissionID string) (*models.Submission, error) {
	ctx = ensureContext(ctx)

	var submission models.Submission
	err := s.db.WithContext(ctx).First(&submission, "id = ?", strings.TrimSpace(submissionID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("submission service: load submission: %w", err)
	}
	return &submission, nil
}

// ReviewInput carries a review decision.
type ReviewInput struct {
	SubmissionID string
	Decision     string
	RejectReason string

	// ReviewerID identifies the admin user performing the review.
	ReviewerID string
	// GuestInviteID is set when a guest moderator reviews; the daily approval
	// limit on that invite's grant then applies.
	GuestInviteID      string
	DailyApprovalLimit *int
}

// Review applies an approve or reject decision to a pending submission.
func (s *SubmissionService) Review(ctx context.Context, input ReviewInput) (*models.Submission, error) {
	ctx = ensureContext(ctx)

	decision := strings.ToLower(strings.TrimSpace(input.Decision))
	if decision != models.SubmissionStatusApproved && decision != models.SubmissionStatusRejected {
		return nil, ErrInvalidReviewDecision
	}

	submission, err := s.Get(ctx, input.SubmissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, ErrSubmissionReviewed
	}

	now := s.now()
	guestInviteID := strings.TrimSpace(input.GuestInviteID)

	if decision == models.SubmissionStatusApproved && guestInviteID != "" && input.DailyApprovalLimit != nil {
		used, err := s.approvalsToday(ctx, guestInviteID, now)
		if err != nil {
			return nil, err
		}
		if used >= int64(*input.DailyApprovalLimit) {
			metrics.SubmissionReviews.WithLabelValues("limit_exceeded").Inc()
			return nil, ErrDailyApprovalLimit
		}
	}

	updates := map[string]any{
		"status":      decision,
		"reviewed_at": now,
	}
	if reviewer := strings.TrimSpace(input.ReviewerID); reviewer != "" {
		updates["reviewed_by"] = reviewer
	}
	if guestInviteID != "" {
		updates["reviewed_by_guest"] = guestInviteID
	}
	if decision == models.SubmissionStatusRejected {
		updates["reject_reason"] = strings.TrimSpace(input.RejectReason)
	}

	if err := s.db.WithContext(ctx).Model(submission).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("submission service: apply review: %w", err)
	}

	submission.Status = decision
	submission.ReviewedAt = &now
	if reviewer := strings.TrimSpace(input.ReviewerID); reviewer != "" {
		submission.ReviewedBy = &reviewer
	}
	if guestInviteID != "" {
		submission.ReviewedByGuest = &guestInviteID
	}
	if decision == models.SubmissionStatusRejected {
		submission.RejectReason = strings.TrimSpace(input.RejectReason)
	}

	metrics.SubmissionReviews.WithLabelValues(decision).Inc()

	if guestInviteID != "" {
		recordGuestAudit(s.audit, ctx, GuestAuditEntry{
			GuestInviteID: guestInviteID,
			EventID:       &submission.EventID,
			SubmissionID:  &submission.ID,
			Action:        "submission." + decision,
			Payload:       map[string]any{"decision": decision},
		})
	} else {
		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "submission.review",
			Resource: submission.ID,
			Result:   decision,
		})
	}

	return submission, nil
}

// approvalsToday counts approvals the invite performed since local midnight.
func (s *SubmissionService) approvalsToday(ctx context.Context, guestInviteID string, now time.Time) (int64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("reviewed_by_guest = ? AND status = ? AND reviewed_at >= ?",
			guestInviteID, models.SubmissionStatusApproved, dayStart).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("submission service: count approvals: %w", err)
	}
	return count, nil
}

// EventStats summarises review progress for one event.
type EventStats struct {
	EventID  string `json:"event_id"`
	Total    int64  `json:"total"`
	Pending  int64  `json:"pending"`
	Approved int64  `json:"approved"`
	Rejected int64  `json:"rejected"`
}

// Stats aggregates submission counts per status for an event.
func (s *SubmissionService) Stats(ctx context.Context, eventID string) (*EventStats, error) {
	ctx = ensureContext(ctx)

	eventID = strings.TrimSpace(eventID)
	stats := EventStats{EventID: eventID}

	rows := []struct {
		Status string
		Count  int64
	}{}
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Select("status, COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("submission service: aggregate stats: %w", err)
	}

	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.SubmissionStatusPending:
			stats.Pending = row.Count
		case models.SubmissionStatusApproved:
			stats.Approved = row.Count
		case models.SubmissionStatusRejected:
			stats.Rejected = row.Count
		}
	}

	return &stats, nil
}
