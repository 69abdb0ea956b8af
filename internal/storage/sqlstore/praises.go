package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

type praiseRow struct {
	ID          string         `db:"id"`
	GroupID     string         `db:"group_id"`
	SenderID    string         `db:"sender_id"`
	ReceiverID  string         `db:"receiver_id"`
	Emoji       string         `db:"emoji"`
	Message     sql.NullString `db:"message"`
	IsPublic    bool           `db:"is_public"`
	IsAnonymous bool           `db:"is_anonymous"`
	CreatedAt   int64          `db:"created_at"`
}

func (r praiseRow) model() models.PraiseMessage {
	return models.PraiseMessage{
		ID:          r.ID,
		GroupID:     r.GroupID,
		SenderID:    r.SenderID,
		ReceiverID:  r.ReceiverID,
		Emoji:       r.Emoji,
		Message:     r.Message.String,
		IsPublic:    r.IsPublic,
		IsAnonymous: r.IsAnonymous,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

type praiseEntryRow struct {
	praiseRow
	SenderName        string         `db:"sender_name"`
	SenderAvatarURL   sql.NullString `db:"sender_avatar_url"`
	ReceiverName      string         `db:"receiver_name"`
	ReceiverAvatarURL sql.NullString `db:"receiver_avatar_url"`
	GroupName         string         `db:"group_name"`
}

func (r praiseEntryRow) model() models.PraiseEntry {
	return models.PraiseEntry{
		PraiseMessage: r.praiseRow.model(),
		Sender:        &models.UserRef{ID: r.SenderID, Name: r.SenderName, AvatarURL: r.SenderAvatarURL.String},
		Receiver:      models.UserRef{ID: r.ReceiverID, Name: r.ReceiverName, AvatarURL: r.ReceiverAvatarURL.String},
		GroupName:     r.GroupName,
	}
}

const praiseEntrySelect = `
	SELECT p.id, p.group_id, p.sender_id, p.receiver_id, p.emoji, p.message,
		p.is_public, p.is_anonymous, p.created_at,
		COALESCE(su.name, '') AS sender_name, su.avatar_url AS sender_avatar_url,
		COALESCE(ru.name, '') AS receiver_name, ru.avatar_url AS receiver_avatar_url,
		g.name AS group_name
	FROM praise_messages p
	JOIN groups g ON g.id = p.group_id
	LEFT JOIN users su ON su.id = p.sender_id
	LEFT JOIN users ru ON ru.id = p.receiver_id
`

// CreatePraise inserts a praise and advances the pair's cooldown record.
//
// Both statements are conditional: the praise insert requires both parties to
// hold active memberships, and the cooldown upsert only overwrites a record
// whose last praise is at or before threshold. If the upsert matches nothing,
// another send for the same pair won the window and the praise insert is
// rolled back with it.
func (s *Store) CreatePraise(ctx context.Context, praise *models.PraiseMessage, threshold time.Time) error {
	if praise.ID == "" {
		praise.ID = uuid.New().String()
	}
	if praise.CreatedAt.IsZero() {
		praise.CreatedAt = nowUTC()
	}
	at := toMillis(praise.CreatedAt)

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO praise_messages (id, group_id, sender_id, receiver_id, emoji, message, is_public, is_anonymous, created_at, updated_at)
			SELECT ?, ?, ?, ?, ?, CAST(? AS TEXT), CAST(? AS BOOLEAN), CAST(? AS BOOLEAN), CAST(? AS BIGINT), CAST(? AS BIGINT)
			WHERE EXISTS (SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ? AND is_active = TRUE)
				AND EXISTS (SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ? AND is_active = TRUE)
		`
		n, err := execAffecting(ctx, tx, tx.Rebind(query),
			praise.ID, praise.GroupID, praise.SenderID, praise.ReceiverID, praise.Emoji,
			nullString(praise.Message), praise.IsPublic, praise.IsAnonymous, at, at,
			praise.GroupID, praise.SenderID,
			praise.GroupID, praise.ReceiverID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert praise: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("group %s: %w", praise.GroupID, storage.ErrNotMembers)
		}

		upsert := `
			INSERT INTO praise_cooldowns (id, group_id, sender_id, receiver_id, last_praised_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (group_id, sender_id, receiver_id) DO UPDATE
			SET last_praised_at = excluded.last_praised_at, updated_at = excluded.updated_at
			WHERE praise_cooldowns.last_praised_at <= ?
		`
		n, err = execAffecting(ctx, tx, tx.Rebind(upsert),
			uuid.New().String(), praise.GroupID, praise.SenderID, praise.ReceiverID, at, at, at,
			toMillis(threshold),
		)
		if err != nil {
			return fmt.Errorf("failed to update cooldown: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("cooldown for %s -> %s: %w", praise.SenderID, praise.ReceiverID, storage.ErrConflict)
		}
		return nil
	})
}

// GetPraise retrieves a praise by ID.
func (s *Store) GetPraise(ctx context.Context, id string) (*models.PraiseMessage, error) {
	var row praiseRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		"SELECT id, group_id, sender_id, receiver_id, emoji, message, is_public, is_anonymous, created_at FROM praise_messages WHERE id = ?"),
		id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("praise %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get praise: %w", err)
	}
	p := row.model()
	return &p, nil
}

// DeletePraise removes a praise sent by senderID.
func (s *Store) DeletePraise(ctx context.Context, id, senderID string) error {
	n, err := execAffecting(ctx, s.db, s.db.Rebind(
		"DELETE FROM praise_messages WHERE id = ? AND sender_id = ?"), id, senderID)
	if err != nil {
		return fmt.Errorf("failed to delete praise: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("praise %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// GetCooldown retrieves the cooldown record of an ordered pair.
func (s *Store) GetCooldown(ctx context.Context, groupID, senderID, receiverID string) (*models.CooldownRecord, error) {
	var last int64
	err := s.db.GetContext(ctx, &last, s.db.Rebind(
		"SELECT last_praised_at FROM praise_cooldowns WHERE group_id = ? AND sender_id = ? AND receiver_id = ?"),
		groupID, senderID, receiverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cooldown: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown: %w", err)
	}
	return &models.CooldownRecord{
		GroupID:       groupID,
		SenderID:      senderID,
		ReceiverID:    receiverID,
		LastPraisedAt: fromMillis(last),
	}, nil
}

// ListGroupPraises lists the group's praises that are public or involve the
// viewer, newest first.
func (s *Store) ListGroupPraises(ctx context.Context, groupID, viewerID string) ([]models.PraiseEntry, error) {
	query := praiseEntrySelect + `
		WHERE p.group_id = ? AND (p.is_public = TRUE OR p.sender_id = ? OR p.receiver_id = ?)
		ORDER BY p.created_at DESC, p.id
	`
	return s.selectEntries(ctx, query, groupID, viewerID, viewerID)
}

// ListReceivedPraises lists praises received by the user across groups, newest first.
func (s *Store) ListReceivedPraises(ctx context.Context, userID string, limit int) ([]models.PraiseEntry, error) {
	query := praiseEntrySelect + `
		WHERE p.receiver_id = ?
		ORDER BY p.created_at DESC, p.id
		LIMIT ?
	`
	return s.selectEntries(ctx, query, userID, limit)
}

// ListSentPraises lists praises sent by the user across groups, newest first.
func (s *Store) ListSentPraises(ctx context.Context, userID string, limit int) ([]models.PraiseEntry, error) {
	query := praiseEntrySelect + `
		WHERE p.sender_id = ?
		ORDER BY p.created_at DESC, p.id
		LIMIT ?
	`
	return s.selectEntries(ctx, query, userID, limit)
}

func (s *Store) selectEntries(ctx context.Context, query string, args ...any) ([]models.PraiseEntry, error) {
	var rows []praiseEntryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list praises: %w", err)
	}

	entries := make([]models.PraiseEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.model())
	}
	return entries, nil
}
