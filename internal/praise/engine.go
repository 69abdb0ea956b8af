// Package praise decides whether a member may praise another member right now
// and records admitted praises together with their cooldown timestamp.
package praise

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmynk/kudos/internal/apperr"
	"github.com/mmynk/kudos/internal/cooldown"
	"github.com/mmynk/kudos/internal/metrics"
	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

const (
	// DefaultEmoji is used when a praise is sent without one.
	DefaultEmoji = "👍"

	// MaxEmojiBytes bounds the emoji field, enough for multi-codepoint sequences.
	MaxEmojiBytes = 32

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Invalidator drops cached per-user aggregates after a praise is written or removed.
type Invalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
}

// Engine admits and records praises.
type Engine struct {
	store  storage.Store
	stats  Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for admission and created_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStatsInvalidator sets the cache invalidated after sends and deletes.
func WithStatsInvalidator(inv Invalidator) Option {
	return func(e *Engine) { e.stats = inv }
}

// NewEngine creates an Engine backed by store.
func NewEngine(store storage.Store, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SendParams are the inputs of SendPraise.
type SendParams struct {
	GroupID     string
	SenderID    string
	ReceiverID  string
	Emoji       string
	Message     string
	IsPublic    bool
	IsAnonymous bool
}

// CanPraise reports whether senderID may praise receiverID in the group now,
// and if not, when they may.
func (e *Engine) CanPraise(ctx context.Context, groupID, senderID, receiverID string) (cooldown.Decision, error) {
	if err := requireIdentity(senderID); err != nil {
		return cooldown.Decision{}, err
	}
	if senderID == receiverID {
		return cooldown.Decision{}, apperr.Validation("cannot praise yourself")
	}

	group, err := e.getGroup(ctx, groupID)
	if err != nil {
		return cooldown.Decision{}, err
	}
	if err := e.requireMembers(ctx, groupID, senderID, receiverID); err != nil {
		return cooldown.Decision{}, err
	}
	return e.evaluate(ctx, group, senderID, receiverID, e.clock())
}

// SendPraise validates, re-checks admission and records a praise with its
// cooldown timestamp in one transaction. When two sends for the same pair
// race, the loser gets CooldownActive with the winner's next allowed time.
func (e *Engine) SendPraise(ctx context.Context, p SendParams) (*models.PraiseMessage, error) {
	if err := requireIdentity(p.SenderID); err != nil {
		return nil, err
	}

	msg, emoji, err := validate(p)
	if err != nil {
		metrics.RecordPraise("invalid")
		return nil, err
	}

	group, err := e.getGroup(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}
	if err := e.requireMembers(ctx, p.GroupID, p.SenderID, p.ReceiverID); err != nil {
		metrics.RecordPraise("not_members")
		return nil, err
	}

	now := e.clock()
	decision, err := e.evaluate(ctx, group, p.SenderID, p.ReceiverID, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		metrics.RecordPraise("cooldown")
		return nil, apperr.CooldownActive(decision.NextAllowedAt)
	}

	praise := &models.PraiseMessage{
		GroupID:     p.GroupID,
		SenderID:    p.SenderID,
		ReceiverID:  p.ReceiverID,
		Emoji:       emoji,
		Message:     msg,
		IsPublic:    p.IsPublic,
		IsAnonymous: p.IsAnonymous,
		CreatedAt:   now,
	}

	err = e.store.CreatePraise(ctx, praise, group.Cooldown.Threshold(now))
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotMembers):
		metrics.RecordPraise("not_members")
		return nil, apperr.New(apperr.KindNotMembers, "sender and receiver must both be active members")
	case errors.Is(err, storage.ErrConflict):
		return nil, e.lostRace(ctx, group, p.SenderID, p.ReceiverID, now, err)
	default:
		metrics.RecordPraise("error")
		e.logger.Error("SendPraise failed", "group_id", p.GroupID, "sender_id", p.SenderID, "error", err)
		return nil, err
	}

	e.invalidate(ctx, praise.SenderID, praise.ReceiverID)
	metrics.RecordPraise("sent")
	e.logger.Info("Praise sent",
		"praise_id", praise.ID,
		"group_id", praise.GroupID,
		"sender_id", praise.SenderID,
		"receiver_id", praise.ReceiverID,
		"public", praise.IsPublic,
		"anonymous", praise.IsAnonymous,
	)
	return praise, nil
}

// lostRace turns a rejected cooldown upsert into CooldownActive carrying the
// winning writer's next allowed time.
func (e *Engine) lostRace(ctx context.Context, group *models.Group, senderID, receiverID string, now time.Time, cause error) error {
	rec, err := e.store.GetCooldown(ctx, group.ID, senderID, receiverID)
	if err == nil {
		if next := group.Cooldown.NextAllowedAt(rec.LastPraisedAt); now.Before(next) {
			metrics.RecordPraise("cooldown")
			return apperr.CooldownActive(next)
		}
	}
	metrics.RecordPraise("conflict")
	return apperr.Wrap(apperr.KindStoreConflict, cause, "concurrent praise, try again")
}

// DeletePraise removes a praise. Only its sender may do so. The pair's
// cooldown record is left untouched.
func (e *Engine) DeletePraise(ctx context.Context, praiseID, callerID string) error {
	if err := requireIdentity(callerID); err != nil {
		return err
	}

	p, err := e.store.GetPraise(ctx, praiseID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "praise %s not found", praiseID)
	}
	if err != nil {
		return err
	}
	if p.SenderID != callerID {
		return apperr.New(apperr.KindNotAuthorized, "only the sender can delete a praise")
	}

	if err := e.store.DeletePraise(ctx, praiseID, callerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "praise %s not found", praiseID)
		}
		e.logger.Error("DeletePraise failed", "praise_id", praiseID, "error", err)
		return err
	}

	e.invalidate(ctx, p.SenderID, p.ReceiverID)
	e.logger.Info("Praise deleted", "praise_id", praiseID, "sender_id", callerID)
	return nil
}

// ListGroupPraises lists the praises of a group that viewerID may see,
// newest first, with anonymous senders withheld.
func (e *Engine) ListGroupPraises(ctx context.Context, groupID, viewerID string) ([]models.PraiseEntry, error) {
	if err := requireIdentity(viewerID); err != nil {
		return nil, err
	}
	if _, err := e.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if _, err := e.store.GetActiveMembership(ctx, groupID, viewerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotAuthorized, "not a member of this group")
		}
		return nil, err
	}

	entries, err := e.store.ListGroupPraises(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	return present(entries, viewerID), nil
}

// ListReceived lists praises received by userID across groups.
func (e *Engine) ListReceived(ctx context.Context, userID string, limit int) ([]models.PraiseEntry, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	entries, err := e.store.ListReceivedPraises(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return present(entries, userID), nil
}

// ListSent lists praises sent by userID across groups.
func (e *Engine) ListSent(ctx context.Context, userID string, limit int) ([]models.PraiseEntry, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	entries, err := e.store.ListSentPraises(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return present(entries, userID), nil
}

func (e *Engine) evaluate(ctx context.Context, group *models.Group, senderID, receiverID string, now time.Time) (cooldown.Decision, error) {
	if group.Cooldown.Disabled() {
		return cooldown.Decision{Allowed: true}, nil
	}

	rec, err := e.store.GetCooldown(ctx, group.ID, senderID, receiverID)
	if errors.Is(err, storage.ErrNotFound) {
		return group.Cooldown.Evaluate(nil, now), nil
	}
	if err != nil {
		return cooldown.Decision{}, err
	}
	return group.Cooldown.Evaluate(&rec.LastPraisedAt, now), nil
}

func (e *Engine) requireMembers(ctx context.Context, groupID string, userIDs ...string) error {
	for _, id := range userIDs {
		_, err := e.store.GetActiveMembership(ctx, groupID, id)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindNotMembers, "sender and receiver must both be active members")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) getGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "group %s not found", groupID)
	}
	return group, err
}

// invalidate is best effort: the praise is already committed.
func (e *Engine) invalidate(ctx context.Context, userIDs ...string) {
	if e.stats == nil {
		return
	}
	if err := e.stats.Invalidate(ctx, userIDs...); err != nil {
		e.logger.Warn("Failed to invalidate praise stats", "user_ids", userIDs, "error", err)
	}
}

// clock returns now at the store's millisecond resolution, so the
// created_at handed back equals the one read back later.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}

func validate(p SendParams) (msg, emoji string, err error) {
	if p.SenderID == p.ReceiverID {
		return "", "", apperr.Validation("cannot praise yourself")
	}
	if p.ReceiverID == "" {
		return "", "", apperr.Validation("receiver is required")
	}

	msg = strings.TrimSpace(p.Message)
	if utf8.RuneCountInString(msg) > models.MaxPraiseMessageLength {
		return "", "", apperr.New(apperr.KindMessageTooLong, "message must be at most %d characters", models.MaxPraiseMessageLength)
	}

	emoji = strings.TrimSpace(p.Emoji)
	if emoji == "" {
		emoji = DefaultEmoji
	}
	if len(emoji) > MaxEmojiBytes {
		return "", "", apperr.Validation("emoji is too long")
	}
	return msg, emoji, nil
}

func present(entries []models.PraiseEntry, viewerID string) []models.PraiseEntry {
	out := make([]models.PraiseEntry, 0, len(entries))
	for _, entry := range entries {
		if !Visible(entry.PraiseMessage, viewerID) {
			continue
		}
		out = append(out, Redact(entry))
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func requireIdentity(userID string) error {
	if userID == "" {
		return apperr.New(apperr.KindUnauthenticated, "sign in required")
	}
	return nil
}
