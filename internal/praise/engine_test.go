package praise

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/kudos/internal/apperr"
	"github.com/mmynk/kudos/internal/cooldown"
	"github.com/mmynk/kudos/internal/membership"
	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage/sqlstore"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingInvalidator remembers which users had their stats dropped.
type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userIDs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, userIDs...)
	return nil
}

type fixture struct {
	store   *sqlstore.Store
	members *membership.Manager
	engine  *Engine
	clock   *clock
	stats   *recordingInvalidator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	stats := &recordingInvalidator{}
	return &fixture{
		store:   store,
		members: membership.NewManager(store, nil, membership.WithClock(c.Now)),
		engine:  NewEngine(store, nil, WithClock(c.Now), WithStatsInvalidator(stats)),
		clock:   c,
		stats:   stats,
	}
}

// group creates a group owned by owner with the given policy and joins members.
func (f *fixture) group(t *testing.T, policy cooldown.Policy, owner string, members ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	g, err := f.members.CreateGroup(ctx, owner, membership.CreateGroupParams{Name: "Crew", Cooldown: policy})
	require.NoError(t, err)
	for _, u := range members {
		require.NoError(t, f.members.JoinGroup(ctx, g.ID, u))
	}
	return g
}

func (f *fixture) send(groupID, sender, receiver string) (*models.PraiseMessage, error) {
	return f.engine.SendPraise(context.Background(), SendParams{
		GroupID:    groupID,
		SenderID:   sender,
		ReceiverID: receiver,
		Message:    "nice work",
		IsPublic:   true,
	})
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func TestSendPraise_CooldownWindow(t *testing.T) {
	f := setup(t)
	g := f.group(t, cooldown.Policy{Value: 1, Unit: cooldown.UnitHour}, "alice", "bob")
	t0 := f.clock.Now()

	_, err := f.send(g.ID, "alice", "bob")
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.send(g.ID, "alice", "bob")
	requireKind(t, err, apperr.KindCooldownActive)
	next, ok := apperr.NextAllowedAt(err)
	require.True(t, ok)
	assert.True(t, next.Equal(t0.Add(time.Hour)), "next = %v, want %v", next, t0.Add(time.Hour))

	// The reverse direction has its own record.
	_, err = f.send(g.ID, "bob", "alice")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.send(g.ID, "alice", "bob")
	require.NoError(t, err)
}

func TestSendPraise_DeleteKeepsCooldown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.group(t, cooldown.Policy{Value: 1, Unit: cooldown.UnitDay}, "alice", "bob")

	p, err := f.send(g.ID, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, f.engine.DeletePraise(ctx, p.ID, "alice"))

	f.clock.Advance(time.Minute)
	_, err = f.send(g.ID, "alice", "bob")
	requireKind(t, err, apperr.KindCooldownActive)
	next, ok := apperr.NextAllowedAt(err)
	require.True(t, ok)
	assert.True(t, next.Equal(p.CreatedAt.Add(24*time.Hour)))
}

func TestCanPraise_MatchesSend(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	policy := cooldown.Policy{Value: 30, Unit: cooldown.UnitMinute}
	g := f.group(t, policy, "alice", "bob")

	d, err := f.engine.CanPraise(ctx, g.ID, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "first praise should be allowed")

	f.clock.Advance(1234 * time.Microsecond)
	p, err := f.send(g.ID, "alice", "bob")
	require.NoError(t, err)

	d, err = f.engine.CanPraise(ctx, g.ID, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.NextAllowedAt.Equal(p.CreatedAt.Add(policy.Window())),
		"next = %v, created = %v", d.NextAllowedAt, p.CreatedAt)

	rec, err := f.store.GetCooldown(ctx, g.ID, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, rec.LastPraisedAt.Equal(p.CreatedAt), "cooldown must carry the praise's created_at")

	f.clock.Advance(policy.Window())
	d, err = f.engine.CanPraise(ctx, g.ID, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestSendPraise_LongestCooldown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A window past the time.Duration range is refused up front.
	_, err := f.members.CreateGroup(ctx, "alice", membership.CreateGroupParams{
		Name:     "Forever",
		Cooldown: cooldown.Policy{Value: 300, Unit: cooldown.UnitYear},
	})
	requireKind(t, err, apperr.KindValidation)

	longest := cooldown.Policy{Value: cooldown.UnitYear.MaxValue(), Unit: cooldown.UnitYear}
	g := f.group(t, cooldown.Default, "alice", "bob")
	tooLong := cooldown.Policy{Value: longest.Value + 1, Unit: cooldown.UnitYear}
	_, err = f.members.UpdateGroup(ctx, g.ID, "alice", membership.UpdateGroupParams{Cooldown: &tooLong})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.members.UpdateGroup(ctx, g.ID, "alice", membership.UpdateGroupParams{Cooldown: &longest})
	require.NoError(t, err)

	p, err := f.send(g.ID, "bob", "alice")
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.send(g.ID, "bob", "alice")
	requireKind(t, err, apperr.KindCooldownActive)
	next, ok := apperr.NextAllowedAt(err)
	require.True(t, ok)
	assert.True(t, next.After(p.CreatedAt), "next allowed %v must follow the praise at %v", next, p.CreatedAt)
}

func TestSendPraise_NonePolicy(t *testing.T) {
	f := setup(t)
	g := f.group(t, cooldown.Policy{Unit: cooldown.UnitNone}, "alice", "bob")

	for i := 0; i < 3; i++ {
		_, err := f.send(g.ID, "alice", "bob")
		require.NoError(t, err, "send %d", i)
	}

	got, err := f.engine.ListSent(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSendPraise_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.group(t, cooldown.Default, "alice", "bob")

	tests := []struct {
		name   string
		params SendParams
		want   apperr.Kind
	}{
		{
			name:   "self praise",
			params: SendParams{GroupID: g.ID, SenderID: "alice", ReceiverID: "alice"},
			want:   apperr.KindValidation,
		},
		{
			name:   "message too long",
			params: SendParams{GroupID: g.ID, SenderID: "alice", ReceiverID: "bob", Message: strings.Repeat("é", models.MaxPraiseMessageLength+1)},
			want:   apperr.KindMessageTooLong,
		},
		{
			name:   "emoji too long",
			params: SendParams{GroupID: g.ID, SenderID: "alice", ReceiverID: "bob", Emoji: strings.Repeat("🎉", 9)},
			want:   apperr.KindValidation,
		},
		{
			name:   "anonymous caller",
			params: SendParams{GroupID: g.ID, ReceiverID: "bob"},
			want:   apperr.KindUnauthenticated,
		},
		{
			name:   "unknown group",
			params: SendParams{GroupID: "missing", SenderID: "alice", ReceiverID: "bob"},
			want:   apperr.KindNotFound,
		},
		{
			name:   "receiver outside group",
			params: SendParams{GroupID: g.ID, SenderID: "alice", ReceiverID: "mallory"},
			want:   apperr.KindNotMembers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.SendPraise(ctx, tt.params)
			requireKind(t, err, tt.want)
		})
	}

	// None of the rejected sends opened a window.
	d, err := f.engine.CanPraise(ctx, g.ID, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestSendPraise_Defaults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.group(t, cooldown.Default, "alice", "bob")

	p, err := f.engine.SendPraise(ctx, SendParams{
		GroupID:    g.ID,
		SenderID:   "alice",
		ReceiverID: "bob",
		Message:    "  " + strings.Repeat("é", models.MaxPraiseMessageLength) + "\n",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultEmoji, p.Emoji)
	assert.Equal(t, strings.Repeat("é", models.MaxPraiseMessageLength), p.Message)
	assert.False(t, p.IsPublic)
	assert.NotEmpty(t, p.ID)

	assert.ElementsMatch(t, []string{"alice", "bob"}, f.stats.ids)
}

func TestSendPraise_AfterLeave(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.group(t, cooldown.Default, "alice", "bob")

	require.NoError(t, f.members.LeaveGroup(ctx, g.ID, "bob"))

	_, err := f.send(g.ID, "alice", "bob")
	requireKind(t, err, apperr.KindNotMembers)

	_, err = f.engine.CanPraise(ctx, g.ID, "bob", "alice")
	requireKind(t, err, apperr.KindNotMembers)
}

func TestSendPraise_Concurrent(t *testing.T) {
	f := setup(t)
	g := f.group(t, cooldown.Policy{Value: 1, Unit: cooldown.UnitHour}, "alice", "bob")

	const senders = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sent    int
		blocked int
	)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.send(g.ID, "alice", "bob")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sent++
			case apperr.KindOf(err) == apperr.KindCooldownActive:
				blocked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sent, "exactly one concurrent send must win")
	assert.Equal(t, senders-1, blocked)

	got, err := f.engine.ListSent(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeletePraise(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.group(t, cooldown.Default, "alice", "bob")

	p, err := f.send(g.ID, "alice", "bob")
	require.NoError(t, err)

	requireKind(t, f.engine.DeletePraise(ctx, p.ID, "bob"), apperr.KindNotAuthorized)
	requireKind(t, f.engine.DeletePraise(ctx, "missing", "alice"), apperr.KindNotFound)

	require.NoError(t, f.engine.DeletePraise(ctx, p.ID, "alice"))
	requireKind(t, f.engine.DeletePraise(ctx, p.ID, "alice"), apperr.KindNotFound)

	got, err := f.engine.ListReceived(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListGroupPraises_Visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g := f.group(t, cooldown.Policy{Unit: cooldown.UnitNone}, "alice", "bob", "carol")

	send := func(sender, receiver, msg string, public, anonymous bool) {
		t.Helper()
		f.clock.Advance(time.Second)
		_, err := f.engine.SendPraise(ctx, SendParams{
			GroupID:     g.ID,
			SenderID:    sender,
			ReceiverID:  receiver,
			Message:     msg,
			IsPublic:    public,
			IsAnonymous: anonymous,
		})
		require.NoError(t, err)
	}
	send("alice", "bob", "public", true, false)
	send("alice", "bob", "private", false, false)
	send("carol", "bob", "secret admirer", true, true)

	messages := func(entries []models.PraiseEntry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.Message
		}
		return out
	}

	t.Run("receiver sees all, newest first", func(t *testing.T) {
		got, err := f.engine.ListGroupPraises(ctx, g.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"secret admirer", "private", "public"}, messages(got))

		anon := got[0]
		assert.Empty(t, anon.SenderID)
		assert.Nil(t, anon.Sender)
		assert.Equal(t, "bob", anon.Receiver.ID)
	})

	t.Run("bystander sees public only", func(t *testing.T) {
		got, err := f.engine.ListGroupPraises(ctx, g.ID, "carol")
		require.NoError(t, err)
		assert.Equal(t, []string{"secret admirer", "public"}, messages(got))

		// Even the anonymous sender gets the withheld view.
		assert.Empty(t, got[0].SenderID)
		assert.Nil(t, got[0].Sender)
		assert.Equal(t, "public", got[1].Message)
		assert.Equal(t, "alice", got[1].SenderID)
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		_, err := f.engine.ListGroupPraises(ctx, g.ID, "mallory")
		requireKind(t, err, apperr.KindNotAuthorized)
	})

	t.Run("received list redacts anonymous senders", func(t *testing.T) {
		got, err := f.engine.ListReceived(ctx, "bob", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for _, e := range got {
			if e.IsAnonymous {
				assert.Empty(t, e.SenderID)
			} else {
				assert.Equal(t, "alice", e.SenderID)
			}
			assert.Equal(t, "Crew", e.GroupName)
		}
	})

	t.Run("sent list redacts own anonymous praise", func(t *testing.T) {
		got, err := f.engine.ListSent(ctx, "carol", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "secret admirer", got[0].Message)
		assert.Empty(t, got[0].SenderID)
		assert.Nil(t, got[0].Sender)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := f.engine.ListReceived(ctx, "bob", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestVisibleAndRedact(t *testing.T) {
	p := models.PraiseMessage{SenderID: "s", ReceiverID: "r", IsAnonymous: true}
	for _, viewer := range []string{"s", "r"} {
		assert.True(t, Visible(p, viewer), "viewer %s", viewer)
	}
	assert.False(t, Visible(p, "x"))
	p.IsPublic = true
	assert.True(t, Visible(p, "x"))

	e := models.PraiseEntry{PraiseMessage: p, Sender: &models.UserRef{ID: "s", Name: "Sam"}}
	redacted := Redact(e)
	assert.Empty(t, redacted.SenderID)
	assert.Nil(t, redacted.Sender)
	assert.Equal(t, "r", redacted.ReceiverID)
	assert.Equal(t, "s", e.SenderID, "Redact must not modify its input")

	e.IsAnonymous = false
	assert.Equal(t, e, Redact(e))
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.in))
		})
	}
}
