package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/pkg/crypto"
	"github.com/mdaccula/postcontrol/pkg/mail"
)

const defaultInviteTokenBytes = 48

var (
	// ErrGuestInviteNotFound indicates no invite matches the provided token or id.
	ErrGuestInviteNotFound = errors.New("guest invite: not found")
	// ErrGuestInviteExpired indicates the invite's access window has already ended.
	ErrGuestInviteExpired = errors.New("guest invite: expired")
	// ErrGuestInviteAlreadyUsed signals that the invite has already been accepted.
	ErrGuestInviteAlreadyUsed = errors.New("guest invite: already accepted")
	// ErrGuestInviteRevoked signals the invite was revoked by an admin.
	ErrGuestInviteRevoked = errors.New("guest invite: revoked")
	// ErrGuestInvitePending indicates an active invite already exists for the email.
	ErrGuestInvitePending = errors.New("guest invite: already pending for email")
	// ErrInvalidAccessWindow rejects windows whose start date falls after the
	// end date, or whose end date already passed. Window shape is validated
	// here, at the write boundary; the resolver never sees a malformed window.
	ErrInvalidAccessWindow = errors.New("guest invite: access start date must not be after end date")
)

// AccessCacheInvalidator drops cached resolver reads for a user after a
// grant-affecting write. Satisfied by *guests.Resolver.
type AccessCacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// GuestInviteOption customises GuestInviteService behaviour.
type GuestInviteOption func(*GuestInviteService)

// WithInviteBaseURL configures the base URL used to create invite hyperlinks.
func WithInviteBaseURL(url string) GuestInviteOption {
	return func(s *GuestInviteService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteTokenSize adjusts the random token length in bytes.
func WithInviteTokenSize(size int) GuestInviteOption {
	return func(s *GuestInviteService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) GuestInviteOption {
	return func(s *GuestInviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInviteCacheInvalidator wires the resolver cache invalidation hook.
func WithInviteCacheInvalidator(inv AccessCacheInvalidator) GuestInviteOption {
	return func(s *GuestInviteService) {
		s.invalidator = inv
	}
}

// GuestInviteService manages the guest invite lifecycle: creation, token
// redemption, revocation, and access window updates.
type GuestInviteService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	audit       *AuditService
	invalidator AccessCacheInvalidator
	baseURL     string
	tokenLength int
	now         func() time.Time
}

// NewGuestInviteService constructs a GuestInviteService with the provided dependencies.
func NewGuestInviteService(db *gorm.DB, mailer mail.Mailer, audit *AuditService, opts ...GuestInviteOption) (*GuestInviteService, error) {
	if db == nil {
		return nil, errors.New("guest invite service: db is required")
	}

	service := &GuestInviteService{
		db:          db,
		mailer:      mailer,
		audit:       audit,
		tokenLength: defaultInviteTokenBytes,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateGuestInviteInput describes the payload accepted by CreateInvite.
type CreateGuestInviteInput struct {
	AgencyID           string
	InvitedBy          string
	Email              string
	AccessStartDate    time.Time
	AccessEndDate      time.Time
	NotifyOnSubmission bool
	NotifyOnApproval   bool
}

// CreateInvite creates a pending invite with a single-use token and optionally
// dispatches the invitation email. The raw token is returned once; only its
// hash is stored.
func (s *GuestInviteService) CreateInvite(ctx context.Context, input CreateGuestInviteInput) (invite *models.GuestInvite, token, link string, err error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, "", "", errors.New("guest invite service: email is required")
	}
	agencyID := strings.TrimSpace(input.AgencyID)
	if agencyID == "" {
		return nil, "", "", errors.New("guest invite service: agency id is required")
	}

	now := s.now()
	if err := validateAccessWindow(input.AccessStartDate, input.AccessEndDate, now); err != nil {
		return nil, "", "", err
	}

	var existing int64
	err = s.db.WithContext(ctx).Model(&models.GuestInvite{}).
		Where("agency_id = ? AND email = ? AND status = ? AND access_end_date >= ?",
			agencyID, email, models.GuestInviteStatusPending, now).
		Count(&existing).Error
	if err != nil {
		return nil, "", "", fmt.Errorf("guest invite service: check pending invites: %w", err)
	}
	if existing > 0 {
		return nil, "", "", ErrGuestInvitePending
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, "", "", fmt.Errorf("guest invite service: generate token: %w", err)
	}

	record := models.GuestInvite{
		AgencyID:           agencyID,
		InvitedBy:          strings.TrimSpace(input.InvitedBy),
		Email:              email,
		TokenHash:          crypto.HashToken(rawToken),
		Status:             models.GuestInviteStatusPending,
		AccessStartDate:    input.AccessStartDate,
		AccessEndDate:      input.AccessEndDate,
		NotifyOnSubmission: input.NotifyOnSubmission,
		NotifyOnApproval:   input.NotifyOnApproval,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, "", "", fmt.Errorf("guest invite service: create invite: %w", err)
	}

	link = s.inviteLink(rawToken)

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: "You've been invited to collaborate on PostControl",
			Body:    s.inviteBody(link),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return nil, "", "", fmt.Errorf("guest invite service: send email: %w", mailErr)
		}
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "guest_invite.create",
		Resource: record.ID,
		Result:   "success",
		Metadata: map[string]any{
			"email":             email,
			"agency_id":         agencyID,
			"access_start_date": input.AccessStartDate,
			"access_end_date":   input.AccessEndDate,
		},
	})

	return &record, rawToken, link, nil
}

// ValidateToken resolves a raw invitation token to its pending invite without
// consuming it.
func (s *GuestInviteService) ValidateToken(ctx context.Context, token string) (*models.GuestInvite, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("guest invite service: token is required")
	}

	var invite models.GuestInvite
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("guest invite service: find invite: %w", err)
	}

	switch invite.Status {
	case models.GuestInviteStatusRevoked:
		return nil, ErrGuestInviteRevoked
	case models.GuestInviteStatusAccepted:
		return nil, ErrGuestInviteAlreadyUsed
	case models.GuestInviteStatusExpired:
		return nil, ErrGuestInviteExpired
	}

	// Expiry is computed from the window, not the stored status.
	if s.now().After(invite.AccessEndDate) {
		return nil, ErrGuestInviteExpired
	}

	return &invite, nil
}

// AcceptInvite binds the invite to the redeeming user and marks it accepted.
func (s *GuestInviteService) AcceptInvite(ctx context.Context, inviteID, guestUserID string) (*models.GuestInvite, error) {
	ctx = ensureContext(ctx)

	guestUserID = strings.TrimSpace(guestUserID)
	if guestUserID == "" {
		return nil, errors.New("guest invite service: guest user id is required")
	}

	invite, err := s.byID(ctx, inviteID)
	if err != nil {
		return nil, err
	}

	switch invite.Status {
	case models.GuestInviteStatusAccepted:
		return nil, ErrGuestInviteAlreadyUsed
	case models.GuestInviteStatusRevoked:
		return nil, ErrGuestInviteRevoked
	}

	now := s.now()
	if now.After(invite.AccessEndDate) {
		return nil, ErrGuestInviteExpired
	}

	updates := map[string]any{
		"status":        models.GuestInviteStatusAccepted,
		"guest_user_id": guestUserID,
		"accepted_at":   now,
	}
	if err := s.db.WithContext(ctx).Model(invite).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("guest invite service: mark accepted: %w", err)
	}

	invite.Status = models.GuestInviteStatusAccepted
	invite.GuestUserID = &guestUserID
	invite.AcceptedAt = &now

	s.invalidate(ctx, guestUserID)

	recordGuestAudit(s.audit, ctx, GuestAuditEntry{
		GuestInviteID: invite.ID,
		Action:        "invite.accept",
		Payload:       map[string]any{"guest_user_id": guestUserID},
	})

	return invite, nil
}

// RevokeInvite revokes the invite and every permission hanging off it.
func (s *GuestInviteService) RevokeInvite(ctx context.Context, inviteID, revokedBy string) error {
	ctx = ensureContext(ctx)

	revokedBy = strings.TrimSpace(revokedBy)
	if revokedBy == "" {
		return errors.New("guest invite service: revoker id is required")
	}

	invite, err := s.byID(ctx, inviteID)
	if err != nil {
		return err
	}

	if invite.Status == models.GuestInviteStatusRevoked {
		return ErrGuestInviteRevoked
	}

	now := s.now()
	updates := map[string]any{
		"status":     models.GuestInviteStatusRevoked,
		"revoked_at": now,
		"revoked_by": revokedBy,
	}
	if err := s.db.WithContext(ctx).Model(invite).Updates(updates).Error; err != nil {
		return fmt.Errorf("guest invite service: mark revoked: %w", err)
	}

	if invite.GuestUserID != nil {
		s.invalidate(ctx, *invite.GuestUserID)
	}

	recordGuestAudit(s.audit, ctx, GuestAuditEntry{
		GuestInviteID: invite.ID,
		Action:        "invite.revoke",
		Payload:       map[string]any{"revoked_by": revokedBy},
	})

	return nil
}

// UpdateWindow changes the invite's access window, revalidating its shape.
func (s *GuestInviteService) UpdateWindow(ctx context.Context, inviteID string, start, end time.Time) (*models.GuestInvite, error) {
	ctx = ensureContext(ctx)

	invite, err := s.byID(ctx, inviteID)
	if err != nil {
		return nil, err
	}

	if invite.Status == models.GuestInviteStatusRevoked {
		return nil, ErrGuestInviteRevoked
	}

	if err := validateAccessWindow(start, end, s.now()); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"access_start_date": start,
		"access_end_date":   end,
	}
	if err := s.db.WithContext(ctx).Model(invite).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("guest invite service: update window: %w", err)
	}

	invite.AccessStartDate = start
	invite.AccessEndDate = end

	if invite.GuestUserID != nil {
		s.invalidate(ctx, *invite.GuestUserID)
	}

	recordGuestAudit(s.audit, ctx, GuestAuditEntry{
		GuestInviteID: invite.ID,
		Action:        "invite.window_update",
		Payload:       map[string]any{"access_start_date": start, "access_end_date": end},
	})

	return invite, nil
}

// ResendInvite rotates the token on a pending invite and re-sends the email.
func (s *GuestInviteService) ResendInvite(ctx context.Context, inviteID string) (invite *models.GuestInvite, token, link string, err error) {
	ctx = ensureContext(ctx)

	invite, err = s.byID(ctx, inviteID)
	if err != nil {
		return nil, "", "", err
	}

	switch invite.Status {
	case models.GuestInviteStatusAccepted:
		return nil, "", "", ErrGuestInviteAlreadyUsed
	case models.GuestInviteStatusRevoked:
		return nil, "", "", ErrGuestInviteRevoked
	}
	if s.now().After(invite.AccessEndDate) {
		return nil, "", "", ErrGuestInviteExpired
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, "", "", fmt.Errorf("guest invite service: generate token: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(invite).Update("token_hash", crypto.HashToken(rawToken)).Error; err != nil {
		return nil, "", "", fmt.Errorf("guest invite service: rotate token: %w", err)
	}

	link = s.inviteLink(rawToken)

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{invite.Email},
			Subject: "Your PostControl collaboration invite",
			Body:    s.inviteBody(link),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return nil, "", "", fmt.Errorf("guest invite service: send email: %w", mailErr)
		}
	}

	return invite, rawToken, link, nil
}

// List returns an agency's invites, optionally filtered by effective status
// or an email search term.
func (s *GuestInviteService) List(ctx context.Context, agencyID, status, search string) ([]models.GuestInvite, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.GuestInvite{}).
		Preload("Permissions").
		Order("created_at DESC")

	if agencyID = strings.TrimSpace(agencyID); agencyID != "" {
		query = query.Where("agency_id = ?", agencyID)
	}
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("email LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var invites []models.GuestInvite
	if err := query.Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("guest invite service: list invites: %w", err)
	}

	// Status filtering happens on the effective (lazily expired) status, so a
	// stored pending invite past its window matches "expired" here.
	if status = strings.TrimSpace(status); status != "" {
		now := s.now()
		filtered := invites[:0]
		for i := range invites {
			if invites[i].EffectiveStatus(now) == status {
				filtered = append(filtered, invites[i])
			}
		}
		invites = filtered
	}

	return invites, nil
}

// TouchLastAccess stamps the invite's last_accessed_at marker.
func (s *GuestInviteService) TouchLastAccess(ctx context.Context, inviteID string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Model(&models.GuestInvite{}).
		Where("id = ?", strings.TrimSpace(inviteID)).
		Update("last_accessed_at", s.now()).Error
}

func (s *GuestInviteService) byID(ctx context.Context, inviteID string) (*models.GuestInvite, error) {
	inviteID = strings.TrimSpace(inviteID)
	if inviteID == "" {
		return nil, errors.New("guest invite service: invite id is required")
	}

	var invite models.GuestInvite
	err := s.db.WithContext(ctx).First(&invite, "id = ?", inviteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("guest invite service: load invite: %w", err)
	}
	return &invite, nil
}

func (s *GuestInviteService) invalidate(ctx context.Context, userID string) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.Invalidate(ctx, userID)
}

func (s *GuestInviteService) inviteLink(token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/invite/accept?token=%s", s.baseURL, token)
}

func (s *GuestInviteService) inviteBody(link string) string {
	return fmt.Sprintf("Hello,\n\nYou have been invited to collaborate on PostControl. Use the following link to accept your invite:\n%s\n\nIf you did not expect this email, you can ignore it.\n", link)
}

func validateAccessWindow(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return ErrInvalidAccessWindow
	}
	if start.After(end) {
		return ErrInvalidAccessWindow
	}
	if end.Before(now) {
		return ErrInvalidAccessWindow
	}
	return nil
}
