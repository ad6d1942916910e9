package guests

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mdaccula/postcontrol/internal/cache"
	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/pkg/logger"
)

// DefaultCacheTTL bounds how stale a cached directory read may be served.
const DefaultCacheTTL = 3 * time.Minute

const (
	cacheKeyRecord = "guests:record:"
	cacheKeyGrants = "guests:grants:"
)

// notFoundMarker caches negative guest record lookups for the same window as
// positive ones.
var notFoundMarker = []byte("-")

// Resolver answers whether a user currently holds guest access and which
// permission tier applies, honouring the invite's access window.
//
// Every operation is fail-closed: a directory error is logged and produces
// the "no access" default, never an error surfaced to the caller. The
// resolver gates UI and API routes; it performs no writes and never persists
// an expired status.
type Resolver struct {
	directory Directory
	store     cache.Store
	ttl       time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// Option customises Resolver behaviour.
type Option func(*Resolver)

// WithCache enables the TTL cache keyed by (operation, user id).
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.store = store
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger overrides the resolver logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver constructs a Resolver over the provided directory.
func NewResolver(directory Directory, opts ...Option) (*Resolver, error) {
	if directory == nil {
		return nil, errors.New("guests: directory is required")
	}

	resolver := &Resolver{
		directory: directory,
		ttl:       DefaultCacheTTL,
		now:       time.Now,
		log:       logger.WithModule("guests"),
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver, nil
}

// IsActiveGuest reports whether the user holds an accepted guest invite whose
// access window contains the current instant, inclusive at both boundaries.
// The check is a read-time predicate only; a record past its window stays
// stored as accepted and is simply treated as inactive on every read.
func (r *Resolver) IsActiveGuest(ctx context.Context, userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}

	record, err := r.guestRecord(ctx, userID)
	if errors.Is(err, ErrNoGuestRecord) {
		return false
	}
	if err != nil {
		r.log.Warn("guest record fetch failed; denying access", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	// The query already filters on status, but the stored row is re-checked
	// rather than trusted.
	if record.Status != models.GuestInviteStatusAccepted {
		return false
	}

	return record.WindowContains(r.now())
}

// HasPermission reports whether the user holds at least the required tier on
// the event. Grants whose access window does not contain the current instant
// are excluded before the event lookup, not merely ignored at comparison time.
func (r *Resolver) HasPermission(ctx context.Context, userID, eventID string, required Tier) bool {
	if !required.Valid() {
		return false
	}

	grant, ok := r.activeGrant(ctx, userID, eventID)
	if !ok {
		return false
	}

	return ParseTier(grant.PermissionLevel).AtLeast(required)
}

// PermissionLevel returns the tier the user holds on the event, or TierNone
// when no in-window grant matches. Used by UI surfaces that display the
// guest's role rather than gate an action.
func (r *Resolver) PermissionLevel(ctx context.Context, userID, eventID string) Tier {
	grant, ok := r.activeGrant(ctx, userID, eventID)
	if !ok {
		return TierNone
	}
	return ParseTier(grant.PermissionLevel)
}

// AllowedEvents returns the event identifiers for which any in-window grant
// exists, regardless of tier. Used to scope a guest's navigation.
func (r *Resolver) AllowedEvents(ctx context.Context, userID string) []string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	grants, err := r.eventPermissions(ctx, userID)
	if err != nil {
		r.log.Warn("event permissions fetch failed; returning no events", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	now := r.now()
	seen := make(map[string]struct{})
	var events []string
	for _, grant := range grants {
		if !grantInWindow(grant, now) {
			continue
		}
		if _, ok := seen[grant.EventID]; ok {
			continue
		}
		seen[grant.EventID] = struct{}{}
		events = append(events, grant.EventID)
	}

	return events
}

// ActiveGrant exposes the in-window grant for an event, letting write
// boundaries read the daily approval limit and invite attribution. The second
// return is false when no in-window grant matches or the directory failed.
func (r *Resolver) ActiveGrant(ctx context.Context, userID, eventID string) (EventGrant, bool) {
	grant, ok := r.activeGrant(ctx, userID, eventID)
	if !ok {
		return EventGrant{}, false
	}
	return *grant, true
}

// Invalidate drops the user's cached directory reads. Called on login/logout
// and by the services that grant or revoke guest access.
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	if r.store == nil {
		return
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	if err := r.store.Delete(ctx, cacheKeyRecord+userID, cacheKeyGrants+userID); err != nil {
		r.log.Warn("resolver cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *Resolver) activeGrant(ctx context.Context, userID, eventID string) (*EventGrant, bool) {
	userID = strings.TrimSpace(userID)
	eventID = strings.TrimSpace(eventID)
	if userID == "" || eventID == "" {
		return nil, false
	}

	grants, err := r.eventPermissions(ctx, userID)
	if err != nil {
		r.log.Warn("event permissions fetch failed; denying access",
			zap.String("user_id", userID),
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, false
	}

	now := r.now()
	for i := range grants {
		if !grantInWindow(grants[i], now) {
			continue
		}
		if grants[i].EventID == eventID {
			return &grants[i], true
		}
	}

	return nil, false
}

// grantInWindow re-checks invite status and window bounds client-side even
// though the directory query filters them server-side.
func grantInWindow(grant EventGrant, now time.Time) bool {
	if grant.InviteStatus != models.GuestInviteStatusAccepted {
		return false
	}
	return !now.Before(grant.AccessStartDate) && !now.After(grant.AccessEndDate)
}

func (r *Resolver) guestRecord(ctx context.Context, userID string) (*models.GuestInvite, error) {
	key := cacheKeyRecord + userID

	if r.store != nil {
		if raw, ok, err := r.store.Get(ctx, key); err == nil && ok {
			if string(raw) == string(notFoundMarker) {
				return nil, ErrNoGuestRecord
			}
			var invite models.GuestInvite
			if err := json.Unmarshal(raw, &invite); err == nil {
				return &invite, nil
			}
		}
	}

	invite, err := r.directory.GuestRecord(ctx, userID)
	if errors.Is(err, ErrNoGuestRecord) {
		r.cachePut(ctx, key, notFoundMarker)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(invite); marshalErr == nil {
		r.cachePut(ctx, key, encoded)
	}

	return invite, nil
}

func (r *Resolver) eventPermissions(ctx context.Context, userID string) ([]EventGrant, error) {
	key := cacheKeyGrants + userID

	if r.store != nil {
		if raw, ok, err := r.store.Get(ctx, key); err == nil && ok {
			var grants []EventGrant
			if err := json.Unmarshal(raw, &grants); err == nil {
				return grants, nil
			}
		}
	}

	grants, err := r.directory.EventPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(grants); marshalErr == nil {
		r.cachePut(ctx, key, encoded)
	}

	return grants, nil
}

func (r *Resolver) cachePut(ctx context.Context, key string, value []byte) {
	if r.store == nil {
		return
	}
	if err := r.store.Set(ctx, key, value, r.ttl); err != nil {
		r.log.Debug("resolver cache write failed", zap.String("key", key), zap.Error(err))
	}
}
