package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/auditctx"
	"github.com/mdaccula/postcontrol/internal/models"
)

// AuditEntry captures a single admin-side audit event to persist.
type AuditEntry struct {
	UserID    *string
	Action    string
	Resource  string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// GuestAuditEntry captures one action performed under a guest invite.
type GuestAuditEntry struct {
	GuestInviteID string
	EventID       *string
	SubmissionID  *string
	Action        string
	Payload       map[string]any
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	UserID   string
	Action   string
	Result   string
	Resource string
	Since    *time.Time
	Until    *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService persists and retrieves admin and guest audit log entries.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Log stores an admin audit entry, marshalling metadata into JSON form.
// Actor identity and request metadata are lifted from the context when the
// entry does not carry them explicitly.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		if entry.UserID == nil && actor.UserID != "" {
			id := actor.UserID
			entry.UserID = &id
		}
		if entry.IPAddress == "" {
			entry.IPAddress = actor.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = actor.UserAgent
		}
	}

	payload := ""
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		payload = string(encoded)
	}

	log := models.AuditLog{
		UserID:    entry.UserID,
		Action:    strings.TrimSpace(entry.Action),
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    strings.TrimSpace(entry.Result),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
		Metadata:  payload,
	}

	return s.db.WithContext(ctx).Create(&log).Error
}

// LogGuest appends an immutable guest audit record.
func (s *AuditService) LogGuest(ctx context.Context, entry GuestAuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.GuestInviteID) == "" {
		return errors.New("audit service: guest invite id is required")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}

	log := models.GuestAuditLog{
		GuestInviteID: strings.TrimSpace(entry.GuestInviteID),
		EventID:       entry.EventID,
		SubmissionID:  entry.SubmissionID,
		Action:        strings.TrimSpace(entry.Action),
	}

	if entry.Payload != nil {
		encoded, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("audit service: marshal payload: %w", err)
		}
		log.Payload = encoded
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		log.IPAddress = actor.IPAddress
		log.UserAgent = actor.UserAgent
	}

	return s.db.WithContext(ctx).Create(&log).Error
}

// List returns paginated admin audit logs ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := normalisePage(opts.Page, opts.PageSize)

	var (
		results []models.AuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	query = applyAuditFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error
	if err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// ListGuest returns paginated audit records for one guest invite, newest first.
func (s *AuditService) ListGuest(ctx context.Context, guestInviteID string, page, pageSize int) ([]models.GuestAuditLog, int64, error) {
	ctx = ensureContext(ctx)

	guestInviteID = strings.TrimSpace(guestInviteID)
	if guestInviteID == "" {
		return nil, 0, errors.New("audit service: guest invite id is required")
	}

	page, perPage := normalisePage(page, pageSize)

	var (
		results []models.GuestAuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.GuestAuditLog{}).
		Where("guest_invite_id = ?", guestInviteID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count guest logs: %w", err)
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error
	if err != nil {
		return nil, 0, fmt.Errorf("audit service: list guest logs: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes admin and guest audit entries past the retention
// horizon and reports the number of rows deleted.
func (s *AuditService) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	ctx = ensureContext(ctx)

	if days <= 0 {
		return 0, errors.New("audit service: retention days must be positive")
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var removed int64

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return removed, fmt.Errorf("audit service: cleanup audit logs: %w", result.Error)
	}
	removed += result.RowsAffected

	result = s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.GuestAuditLog{})
	if result.Error != nil {
		return removed, fmt.Errorf("audit service: cleanup guest audit logs: %w", result.Error)
	}
	removed += result.RowsAffected

	return removed, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if userID := strings.TrimSpace(filters.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if action := strings.TrimSpace(filters.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if result := strings.TrimSpace(filters.Result); result != "" {
		query = query.Where("result = ?", result)
	}
	if resource := strings.TrimSpace(filters.Resource); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}

func normalisePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	return page, perPage
}
