package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

type userRow struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	Name      string         `db:"name"`
	AvatarURL sql.NullString `db:"avatar_url"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
}

func (r userRow) model() *models.User {
	return &models.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		AvatarURL: r.AvatarURL.String,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

// UpsertUser inserts a profile, or refreshes the email of an existing one.
func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = nowUTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query := `
		INSERT INTO users (id, email, name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		user.ID,
		user.Email,
		user.Name,
		nullString(user.AvatarURL),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		"SELECT id, email, name, avatar_url, created_at, updated_at FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.model(), nil
}

// UpdateUserProfile sets the display name and avatar of an existing user.
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, avatarURL string, now time.Time) (*models.User, error) {
	n, err := execAffecting(ctx, s.db, s.db.Rebind(
		"UPDATE users SET name = ?, avatar_url = ?, updated_at = ? WHERE id = ?"),
		name, nullString(avatarURL), toMillis(now), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

// GetPraiseStats counts praises sent and received by the user across groups.
func (s *Store) GetPraiseStats(ctx context.Context, userID string) (models.PraiseStats, error) {
	var row struct {
		Sent     int `db:"sent"`
		Received int `db:"received"`
	}
	query := `
		SELECT
			(SELECT COUNT(*) FROM praise_messages WHERE sender_id = ?) AS sent,
			(SELECT COUNT(*) FROM praise_messages WHERE receiver_id = ?) AS received
	`
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), userID, userID); err != nil {
		return models.PraiseStats{}, fmt.Errorf("failed to count praises: %w", err)
	}
	return models.PraiseStats{Sent: row.Sent, Received: row.Received}, nil
}
