// Package profile keeps the user profiles derived from sign-in identities.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmynk/kudos/internal/apperr"
	"github.com/mmynk/kudos/internal/auth"
	"github.com/mmynk/kudos/internal/cache"
	"github.com/mmynk/kudos/internal/metrics"
	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

// MaxNameLength is the limit, in characters, of a display name.
const MaxNameLength = 50

// Directory reads and edits user profiles.
type Directory struct {
	store  storage.UserStore
	stats  cache.StatsCache
	logger *slog.Logger
	now    func() time.Time
}

// NewDirectory creates a Directory. A nil stats cache disables caching.
func NewDirectory(store storage.UserStore, stats cache.StatsCache, logger *slog.Logger) *Directory {
	if stats == nil {
		stats = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		store:  store,
		stats:  stats,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SyncFromIdentity creates the caller's profile on first sign-in and refreshes
// its email afterwards. A name the user edited is kept.
//
// Persisting is best effort: if the store fails, the failure is logged and
// the profile derived from the claims is returned.
func (d *Directory) SyncFromIdentity(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	if claims == nil || claims.UserID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "sign in required")
	}

	now := d.now()
	derived := &models.User{
		ID:        claims.UserID,
		Email:     claims.Email,
		Name:      displayName(claims),
		AvatarURL: claims.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := validAvatarURL(derived.AvatarURL); err != nil {
		derived.AvatarURL = ""
	}

	if err := d.store.UpsertUser(ctx, derived); err != nil {
		d.logger.Warn("Profile sync failed", "user_id", claims.UserID, "error", err)
		return derived, nil
	}

	stored, err := d.store.GetUser(ctx, claims.UserID)
	if err != nil {
		d.logger.Warn("Profile read after sync failed", "user_id", claims.UserID, "error", err)
		return derived, nil
	}
	return stored, nil
}

// Get returns the profile of userID.
func (d *Directory) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := d.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "user %s not found", userID)
	}
	return user, err
}

// UpdateProfile sets the display name and avatar of userID.
// An empty avatarURL clears the avatar.
func (d *Directory) UpdateProfile(ctx context.Context, userID, name, avatarURL string) (*models.User, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "sign in required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperr.Validation("name must be at most %d characters", MaxNameLength)
	}

	avatarURL, err := validAvatarURL(avatarURL)
	if err != nil {
		return nil, err
	}

	user, err := d.store.UpdateUserProfile(ctx, userID, name, avatarURL, d.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "user %s not found", userID)
	}
	if err != nil {
		d.logger.Error("UpdateProfile failed", "user_id", userID, "error", err)
		return nil, err
	}

	d.logger.Info("Profile updated", "user_id", userID)
	return user, nil
}

// Stats returns how many praises userID has sent and received, reading
// through the stats cache.
func (d *Directory) Stats(ctx context.Context, userID string) (models.PraiseStats, error) {
	stats, ok, err := d.stats.Get(ctx, userID)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		d.logger.Warn("Stats cache read failed", "user_id", userID, "error", err)
	case ok:
		metrics.RecordCacheLookup("hit")
		return stats, nil
	default:
		metrics.RecordCacheLookup("miss")
	}

	// The version is read before the load so that an Invalidate racing with
	// it discards this fill instead of being overwritten by it.
	version, verErr := d.stats.Version(ctx, userID)
	if verErr != nil {
		d.logger.Warn("Stats cache version read failed", "user_id", userID, "error", verErr)
	}

	stats, err = d.store.GetPraiseStats(ctx, userID)
	if err != nil {
		return models.PraiseStats{}, err
	}
	if verErr != nil {
		return stats, nil
	}
	if err := d.stats.Set(ctx, userID, stats, version); err != nil {
		d.logger.Warn("Stats cache write failed", "user_id", userID, "error", err)
	}
	return stats, nil
}

// displayName picks the name claim, then the local part of the email, then the ID.
func displayName(claims *auth.Claims) string {
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		local, _, _ := strings.Cut(claims.Email, "@")
		name = strings.TrimSpace(local)
	}
	if name == "" {
		name = claims.UserID
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}

func validAvatarURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation("avatar must be an absolute http(s) URL")
	}
	return raw, nil
}
