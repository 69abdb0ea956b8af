package profile

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/kudos/internal/apperr"
	"github.com/mmynk/kudos/internal/auth"
	"github.com/mmynk/kudos/internal/cooldown"
	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
	"github.com/mmynk/kudos/internal/storage/sqlstore"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// mapCache is an in-memory StatsCache.
type mapCache struct {
	mu       sync.Mutex
	entries  map[string]models.PraiseStats
	versions map[string]int64
	getErr   error
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]models.PraiseStats{}, versions: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, userID string) (models.PraiseStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return models.PraiseStats{}, false, c.getErr
	}
	s, ok := c.entries[userID]
	return s, ok, nil
}

func (c *mapCache) Version(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *mapCache) Set(_ context.Context, userID string, s models.PraiseStats, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return nil
	}
	c.entries[userID] = s
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		c.versions[id]++
		delete(c.entries, id)
	}
	return nil
}

// racingStore runs during before answering GetPraiseStats, standing in for a
// praise committed while the stats are being loaded.
type racingStore struct {
	storage.UserStore
	during func()
}

func (s racingStore) GetPraiseStats(ctx context.Context, userID string) (models.PraiseStats, error) {
	stats, err := s.UserStore.GetPraiseStats(ctx, userID)
	s.during()
	return stats, err
}

// brokenStore fails every write.
type brokenStore struct {
	storage.UserStore
}

func (brokenStore) UpsertUser(context.Context, *models.User) error {
	return errors.New("disk full")
}

func TestSyncFromIdentity(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(newStore(t), nil, nil)

	user, err := d.SyncFromIdentity(ctx, &auth.Claims{UserID: "u1", Email: "grace.hopper@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "grace.hopper", user.Name, "name falls back to the email local part")

	_, err = d.UpdateProfile(ctx, "u1", "Grace", "https://example.com/g.png")
	require.NoError(t, err)

	// A later sign-in refreshes the email but keeps the edited profile.
	user, err = d.SyncFromIdentity(ctx, &auth.Claims{UserID: "u1", Email: "grace@example.com", Name: "G. Hopper"})
	require.NoError(t, err)
	assert.Equal(t, "Grace", user.Name)
	assert.Equal(t, "grace@example.com", user.Email)
	assert.Equal(t, "https://example.com/g.png", user.AvatarURL)

	_, err = d.SyncFromIdentity(ctx, &auth.Claims{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestSyncFromIdentity_BestEffort(t *testing.T) {
	d := NewDirectory(brokenStore{}, nil, nil)

	user, err := d.SyncFromIdentity(context.Background(), &auth.Claims{
		UserID:    "u1",
		Email:     "u1@example.com",
		Name:      "  " + strings.Repeat("n", MaxNameLength+10),
		AvatarURL: "javascript:alert(1)",
	})
	require.NoError(t, err, "a failed sync must not fail sign-in")
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, strings.Repeat("n", MaxNameLength), user.Name)
	assert.Empty(t, user.AvatarURL)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(newStore(t), nil, nil)
	_, err := d.SyncFromIdentity(ctx, &auth.Claims{UserID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		user   string
		dName  string
		avatar string
		want   apperr.Kind
	}{
		{"blank name", "u1", "   ", "", apperr.KindValidation},
		{"long name", "u1", strings.Repeat("é", MaxNameLength+1), "", apperr.KindValidation},
		{"relative avatar", "u1", "Una", "/img/a.png", apperr.KindValidation},
		{"ftp avatar", "u1", "Una", "ftp://example.com/a.png", apperr.KindValidation},
		{"unknown user", "ghost", "Una", "", apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.UpdateProfile(ctx, tt.user, tt.dName, tt.avatar)
			assert.Equal(t, tt.want, apperr.KindOf(err), "err = %v", err)
		})
	}

	user, err := d.UpdateProfile(ctx, "u1", "  "+strings.Repeat("é", MaxNameLength)+" ", "http://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", MaxNameLength), user.Name)

	user, err = d.UpdateProfile(ctx, "u1", "Una", "")
	require.NoError(t, err)
	assert.Empty(t, user.AvatarURL, "empty avatar clears it")

	got, err := d.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Una", got.Name)

	_, err = d.Get(ctx, "ghost")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestStatsReadThrough(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := newMapCache()
	d := NewDirectory(store, c, nil)

	g := &models.Group{Name: "Crew", OwnerID: "u1", InviteCode: "code-1", MaxMembers: 5, Cooldown: cooldown.Default, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateGroup(ctx, g))
	_, err := store.AddMember(ctx, g.ID, "u2", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.CreatePraise(ctx, &models.PraiseMessage{
		GroupID: g.ID, SenderID: "u1", ReceiverID: "u2", Emoji: "👍",
	}, time.Now().UTC()))

	stats, err := d.Stats(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.PraiseStats{Received: 1}, stats)
	assert.Equal(t, stats, c.entries["u2"], "miss populates the cache")

	// Served from the cache until invalidated.
	c.entries["u2"] = models.PraiseStats{Received: 42}
	stats, err = d.Stats(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 42, stats.Received)

	// A failing cache falls back to the store.
	c.getErr = errors.New("connection refused")
	stats, err = d.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PraiseStats{Sent: 1}, stats)
}

func TestStatsInvalidatedDuringLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := newMapCache()

	g := &models.Group{Name: "Crew", OwnerID: "u1", InviteCode: "code-1", MaxMembers: 5, Cooldown: cooldown.Default, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateGroup(ctx, g))
	_, err := store.AddMember(ctx, g.ID, "u2", time.Now().UTC())
	require.NoError(t, err)

	var once sync.Once
	racing := racingStore{UserStore: store, during: func() {
		once.Do(func() {
			require.NoError(t, store.CreatePraise(ctx, &models.PraiseMessage{
				GroupID: g.ID, SenderID: "u1", ReceiverID: "u2", Emoji: "👍",
			}, time.Now().UTC()))
			require.NoError(t, c.Invalidate(ctx, "u1", "u2"))
		})
	}}
	d := NewDirectory(racing, c, nil)

	stats, err := d.Stats(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.PraiseStats{}, stats, "the load itself ran before the praise")

	_, ok, err := c.Get(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok, "a fill that lost to Invalidate must not be cached")

	stats, err = d.Stats(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.PraiseStats{Received: 1}, stats)
	assert.Equal(t, stats, c.entries["u2"])
}
