package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/models"
)

var (
	// ErrGuestPermissionNotFound indicates the invite holds no grant for the event.
	ErrGuestPermissionNotFound = errors.New("guest permission: not found")
	// ErrGuestPermissionExists indicates the invite already holds a grant for the event.
	ErrGuestPermissionExists = errors.New("guest permission: already granted for event")
	// ErrInvalidPermissionLevel rejects levels outside viewer/moderator/manager.
	ErrInvalidPermissionLevel = errors.New("guest permission: invalid permission level")
)

// GuestPermissionService manages per-event permission grants attached to
// guest invites. Every write invalidates the resolver cache for the bound
// guest user so subsequent checks observe the change.
type GuestPermissionService struct {
	db          *gorm.DB
	audit       *AuditService
	invalidator AccessCacheInvalidator
}

// NewGuestPermissionService constructs a GuestPermissionService.
func NewGuestPermissionService(db *gorm.DB, audit *AuditService, invalidator AccessCacheInvalidator) (*GuestPermissionService, error) {
	if db == nil {
		return nil, errors.New("guest permission service: db is required")
	}
	return &GuestPermissionService{db: db, audit: audit, invalidator: invalidator}, nil
}

// GrantPermissionInput describes a new per-event grant.
type GrantPermissionInput struct {
	GuestInviteID      string
	EventID            string
	PermissionLevel    string
	DailyApprovalLimit *int
}

// Grant attaches a permission level for one event to an invite.
func (s *GuestPermissionService) Grant(ctx context.Context, input GrantPermissionInput) (*models.GuestEventPermission, error) {
	ctx = ensureContext(ctx)

	tier := guests.ParseTier(input.PermissionLevel)
	if !tier.Valid() {
		return nil, ErrInvalidPermissionLevel
	}
	eventID := strings.TrimSpace(input.EventID)
	if eventID == "" {
		return nil, errors.New("guest permission service: event id is required")
	}

	invite, err := s.loadInvite(ctx, input.GuestInviteID)
	if err != nil {
		return nil, err
	}
	if invite.Status == models.GuestInviteStatusRevoked {
		return nil, ErrGuestInviteRevoked
	}

	var event models.Event
	err = s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("guest permission service: load event: %w", err)
	}
	if event.AgencyID != invite.AgencyID {
		return nil, ErrEventNotFound
	}

	grant := models.GuestEventPermission{
		GuestInviteID:      invite.ID,
		EventID:            eventID,
		PermissionLevel:    tier.String(),
		DailyApprovalLimit: input.DailyApprovalLimit,
	}
	if err := s.db.WithContext(ctx).Create(&grant).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrGuestPermissionExists
		}
		return nil, fmt.Errorf("guest permission service: create grant: %w", err)
	}

	s.invalidateFor(ctx, invite)

	recordGuestAudit(s.audit, ctx, GuestAuditEntry{
		GuestInviteID: invite.ID,
		EventID:       &eventID,
		Action:        "permission.grant",
		Payload:       map[string]any{"permission_level": tier.String()},
	})

	return &grant, nil
}

// UpdatePermissionInput adjusts an existing grant.
type UpdatePermissionInput struct {
	GuestInviteID      string
	EventID            string
	PermissionLevel    string
	DailyApprovalLimit *int
}

// Update changes the level or approval limit on an existing grant.
func (s *GuestPermissionService) Update(ctx context.Context, input UpdatePermissionInput) (*models.GuestEventPermission, error) {
	ctx = ensureContext(ctx)

	tier := guests.ParseTier(input.PermissionLevel)
	if !tier.Valid() {
		return nil, ErrInvalidPermissionLevel
	}

	invite, err := s.loadInvite(ctx, input.GuestInviteID)
	if err != nil {
		return nil, err
	}

	grant, err := s.loadGrant(ctx, invite.ID, input.EventID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"permission_level":     tier.String(),
		"daily_approval_limit": input.DailyApprovalLimit,
	}
	if err := s.db.WithContext(ctx).Model(grant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("guest permission service: update grant: %w", err)
	}
	grant.PermissionLevel = tier.String()
	grant.DailyApprovalLimit = input.DailyApprovalLimit

	s.invalidateFor(ctx, invite)

	recordGuestAudit(s.audit, ctx, GuestAuditEntry{
		GuestInviteID: invite.ID,
		EventID:       &grant.EventID,
		Action:        "permission.update",
		Payload:       map[string]any{"permission_level": tier.String()},
	})

	return grant, nil
}

// Revoke removes the grant for one event from the invite.
func (s *GuestPermissionService) Revoke(ctx context.Context, inviteID, eventID string) error {
	ctx = ensureContext(ctx)

	invite, err := s.loadInvite(ctx, inviteID)
	if err != nil {
		return err
	}

	grant, err := s.loadGrant(ctx, invite.ID, eventID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(grant).Error; err != nil {
		return fmt.Errorf("guest permission service: delete grant: %w", err)
	}

	s.invalidateFor(ctx, invite)

	recordGuestAudit(s.audit, ctx, GuestAuditEntry{
		GuestInviteID: invite.ID,
		EventID:       &grant.EventID,
		Action:        "permission.revoke",
		Payload:       map[string]any{"permission_level": grant.PermissionLevel},
	})

	return nil
}

// List returns all grants attached to an invite.
func (s *GuestPermissionService) List(ctx context.Context, inviteID string) ([]models.GuestEventPermission, error) {
	ctx = ensureContext(ctx)

	invite, err := s.loadInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}

	var grants []models.GuestEventPermission
	err = s.db.WithContext(ctx).
		Where("guest_invite_id = ?", invite.ID).
		Order("created_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("guest permission service: list grants: %w", err)
	}
	return grants, nil
}

func (s *GuestPermissionService) loadInvite(ctx context.Context, inviteID string) (*models.GuestInvite, error) {
	inviteID = strings.TrimSpace(inviteID)
	if inviteID == "" {
		return nil, errors.New("guest permission service: invite id is required")
	}

	var invite models.GuestInvite
	err := s.db.WithContext(ctx).First(&invite, "id = ?", inviteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("guest permission service: load invite: %w", err)
	}
	return &invite, nil
}

func (s *GuestPermissionService) loadGrant(ctx context.Context, inviteID, eventID string) (*models.GuestEventPermission, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, errors.New("guest permission service: event id is required")
	}

	var grant models.GuestEventPermission
	err := s.db.WithContext(ctx).
		Where("guest_invite_id = ? AND event_id = ?", inviteID, eventID).
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("guest permission service: load grant: %w", err)
	}
	return &grant, nil
}

func (s *GuestPermissionService) invalidateFor(ctx context.Context, invite *models.GuestInvite) {
	if s.invalidator == nil || invite.GuestUserID == nil {
		return
	}
	s.invalidator.Invalidate(ctx, *invite.GuestUserID)
}
