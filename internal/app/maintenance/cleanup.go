package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/cache"
	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/internal/services"
	"github.com/mdaccula/postcontrol/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultEventSpec          = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultInviteSpec         = "@daily"
)

// Cleaner coordinates background maintenance: flagging ended events inactive,
// pruning stale audit logs, sweeping long-expired invites, and purging expired
// cache rows. The sweeps are storage hygiene only; access decisions never
// depend on them, since expiry is always computed at read time.
type Cleaner struct {
	db        *gorm.DB
	events    *services.EventService
	audit     *services.AuditService
	store     *cache.DatabaseStore
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	eventSchedule  string
	auditSchedule  string
	inviteSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCacheStore enables purging of expired database cache rows.
func WithCacheStore(store *cache.DatabaseStore) Option {
	return func(cleaner *Cleaner) {
		cleaner.store = store
	}
}

// WithEventSchedule overrides the cron schedule for event deactivation.
func WithEventSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.eventSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron schedule for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithInviteSchedule overrides the cron schedule for the invite sweep.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, events *services.EventService, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:             db,
		events:         events,
		audit:          audit,
		now:            time.Now,
		retention:      defaultAuditRetentionDays,
		eventSchedule:  defaultEventSpec,
		auditSchedule:  defaultAuditSpec,
		inviteSchedule: defaultInviteSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.events != nil || cleaner.audit != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.events != nil {
		if _, err := c.cron.AddFunc(c.eventSchedule, func() {
			ctx := context.Background()
			if _, err := c.events.DeactivateEnded(ctx); err != nil {
				c.log.Warn("event deactivation failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.inviteSchedule, func() {
			ctx := context.Background()
			if _, err := SweepExpiredInvites(ctx, c.db, c.now()); err != nil {
				c.log.Warn("invite sweep failed", zap.Error(err))
			}
			if c.store != nil {
				if _, err := c.store.CleanupExpired(ctx, c.now()); err != nil {
					c.log.Warn("cache cleanup failed", zap.Error(err))
				}
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.events != nil {
		if _, err := c.events.DeactivateEnded(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := SweepExpiredInvites(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.store != nil {
		if _, err := c.store.CleanupExpired(ctx, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// SweepExpiredInvites marks pending invites whose window closed more than a
// day ago as expired. Readers already treat such invites as expired through
// the window check; the sweep only keeps the stored status tidy for listings
// and reports.
func SweepExpiredInvites(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("sweep invites: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := now.Add(-24 * time.Hour)
	result := db.WithContext(ctx).Model(&models.GuestInvite{}).
		Where("status = ? AND access_end_date < ?", models.GuestInviteStatusPending, cutoff).
		Update("status", models.GuestInviteStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("sweep invites: %w", result.Error)
	}
	return result.RowsAffected, nil
}
