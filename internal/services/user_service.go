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
	apperrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/metrics"
)

var (
	// ErrUserNotFound indicates no user matches the id or email.
	ErrUserNotFound = errors.New("user: not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("user: email already registered")
	// ErrUserDisabled indicates the account has been deactivated.
	ErrUserDisabled = errors.New("user: account disabled")
)

// UserService manages accounts and credential verification.
type UserService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// UserOption customises UserService behaviour.
type UserOption func(*UserService)

// WithUserClock injects a custom clock primarily for testing.
func WithUserClock(clock func() time.Time) UserOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, audit *AuditService, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	service := &UserService{db: db, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateUserInput describes a new account.
type CreateUserInput struct {
	Email       string
	Password    string
	DisplayName string
	IsAdmin     bool
	AgencyID    *string
}

// Create registers a new account with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errors.New("user service: email is required")
	}
	if len(input.Password) < 8 {
		return nil, errors.New("user service: password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Email:       email,
		Password:    hash,
		DisplayName: strings.TrimSpace(input.DisplayName),
		IsAdmin:     input.IsAdmin,
		IsActive:    true,
		AgencyID:    input.AgencyID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"email": email},
	})

	return &user, nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by email, case-insensitively.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// Authenticate verifies credentials and stamps the login metadata. A failure
// never reveals whether the email or the password was wrong.
func (s *UserService) Authenticate(ctx context.Context, email, password, ipAddress string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   &user.ID,
			Action:   "auth.login",
			Resource: user.ID,
			Result:   "failure",
		})
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("disabled").Inc()
		return nil, ErrUserDisabled
	}

	now := s.now()
	updates := map[string]any{"last_login_at": now}
	if ipAddress = strings.TrimSpace(ipAddress); ipAddress != "" {
		updates["last_login_ip"] = ipAddress
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: stamp login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    &user.ID,
		Action:    "auth.login",
		Resource:  user.ID,
		Result:    "success",
		IPAddress: ipAddress,
	})

	return user, nil
}

// EnsureGuestUser finds or creates the account a redeemed invite binds to.
// Redeemers without an existing account get one scoped to the invite's agency.
func (s *UserService) EnsureGuestUser(ctx context.Context, email, password, displayName string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByEmail(ctx, email)
	if err == nil {
		if !user.IsActive {
			return nil, ErrUserDisabled
		}
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.Create(ctx, CreateUserInput{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
}

// SetActive flips the account's active flag.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return fmt.Errorf("user service: set active: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "user.set_active",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"active": active},
	})

	return nil
}
