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

const membershipColumns = "id, group_id, user_id, role, joined_at, left_at, is_active"

type membershipRow struct {
	ID       string        `db:"id"`
	GroupID  string        `db:"group_id"`
	UserID   string        `db:"user_id"`
	Role     string        `db:"role"`
	JoinedAt int64         `db:"joined_at"`
	LeftAt   sql.NullInt64 `db:"left_at"`
	IsActive bool          `db:"is_active"`
}

func (r membershipRow) model() models.Membership {
	m := models.Membership{
		ID:       r.ID,
		GroupID:  r.GroupID,
		UserID:   r.UserID,
		Role:     models.Role(r.Role),
		JoinedAt: fromMillis(r.JoinedAt),
		IsActive: r.IsActive,
	}
	if r.LeftAt.Valid {
		left := fromMillis(r.LeftAt.Int64)
		m.LeftAt = &left
	}
	return m
}

// GetActiveMembership retrieves the user's active membership in the group.
func (s *Store) GetActiveMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	return getActiveMembership(ctx, s.db, groupID, userID)
}

func getActiveMembership(ctx context.Context, q queryer, groupID, userID string) (*models.Membership, error) {
	var row membershipRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(
		"SELECT "+membershipColumns+" FROM group_members WHERE group_id = ? AND user_id = ? AND is_active = TRUE"),
		groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m := row.model()
	return &m, nil
}

// AddMember inserts a new active member row.
//
// The group row is read first (locked on PostgreSQL; SQLite transactions
// already hold the write lock), then the insert is conditional on the active
// member count being below capacity. Two racing joins for the last seat
// therefore see each other's rows and exactly one of them inserts.
func (s *Store) AddMember(ctx context.Context, groupID, userID string, joinedAt time.Time) (*models.Membership, error) {
	m := &models.Membership{
		ID:       uuid.New().String(),
		GroupID:  groupID,
		UserID:   userID,
		Role:     models.RoleMember,
		JoinedAt: joinedAt,
		IsActive: true,
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var maxMembers int
		err := tx.GetContext(ctx, &maxMembers, tx.Rebind("SELECT max_members FROM groups WHERE id = ?"+s.d.lockGroup), groupID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read group: %w", err)
		}

		var existing int
		err = tx.GetContext(ctx, &existing, tx.Rebind(
			"SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ? AND is_active = TRUE"),
			groupID, userID)
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("user %s: %w", userID, storage.ErrAlreadyMember)
		}

		query := `
			INSERT INTO group_members (id, group_id, user_id, role, joined_at, is_active)
			SELECT ?, ?, ?, ?, CAST(? AS BIGINT), TRUE
			WHERE (SELECT COUNT(*) FROM group_members WHERE group_id = ? AND is_active = TRUE) < ?
		`
		n, err := execAffecting(ctx, tx, tx.Rebind(query),
			m.ID, groupID, userID, string(models.RoleMember), toMillis(joinedAt),
			groupID, maxMembers)
		if s.d.isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", userID, storage.ErrAlreadyMember)
		}
		if err != nil {
			return fmt.Errorf("failed to insert membership: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrGroupFull)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeactivateMember closes an active member row. Admin rows are never closed
// here, so a group cannot lose its admin through a leave or a kick.
func (s *Store) DeactivateMember(ctx context.Context, groupID, userID, actorID string, leftAt time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := "UPDATE group_members SET is_active = FALSE, left_at = ? WHERE group_id = ? AND user_id = ? AND is_active = TRUE AND role = 'member'"
		args := []any{toMillis(leftAt), groupID, userID}
		if actorID != "" {
			query += " AND EXISTS (SELECT 1 FROM group_members a WHERE a.group_id = ? AND a.user_id = ? AND a.is_active = TRUE AND a.role = 'admin')"
			args = append(args, groupID, actorID)
		}

		n, err := execAffecting(ctx, tx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("failed to deactivate membership: %w", err)
		}
		if n > 0 {
			return nil
		}

		if actorID != "" {
			actor, err := getActiveMembership(ctx, tx, groupID, actorID)
			if errors.Is(err, storage.ErrNotFound) || (err == nil && !actor.IsAdmin()) {
				return fmt.Errorf("user %s: %w", actorID, storage.ErrForbidden)
			}
			if err != nil {
				return err
			}
		}

		target, err := getActiveMembership(ctx, tx, groupID, userID)
		if err != nil {
			return err
		}
		if target.IsAdmin() {
			return fmt.Errorf("user %s: %w", userID, storage.ErrIsAdmin)
		}
		return fmt.Errorf("user %s: %w", userID, storage.ErrConflict)
	})
}

// TransferOwnership moves the owner pointer and the admin role in one
// transaction: owner first, then demote, then promote. The old admin is
// demoted before the new one is promoted so the single-admin index never
// sees two active admins. Any step that matches no row aborts the whole
// transfer.
func (s *Store) TransferOwnership(ctx context.Context, groupID, fromUserID, toUserID string, now time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		n, err := execAffecting(ctx, tx, tx.Rebind(
			"UPDATE groups SET owner_id = ?, updated_at = ? WHERE id = ? AND owner_id = ?"),
			toUserID, toMillis(now), groupID, fromUserID)
		if err != nil {
			return fmt.Errorf("failed to update owner: %w", err)
		}
		if n == 0 {
			exists, err := groupExists(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
			}
			return fmt.Errorf("user %s is not the owner: %w", fromUserID, storage.ErrForbidden)
		}

		n, err = execAffecting(ctx, tx, tx.Rebind(
			"UPDATE group_members SET role = 'member' WHERE group_id = ? AND user_id = ? AND is_active = TRUE AND role = 'admin'"),
			groupID, fromUserID)
		if err != nil {
			return fmt.Errorf("failed to demote admin: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("owner %s holds no admin membership: %w", fromUserID, storage.ErrConflict)
		}

		n, err = execAffecting(ctx, tx, tx.Rebind(
			"UPDATE group_members SET role = 'admin' WHERE group_id = ? AND user_id = ? AND is_active = TRUE"),
			groupID, toUserID)
		if err != nil {
			return fmt.Errorf("failed to promote member: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("target %s: %w", toUserID, storage.ErrNotFound)
		}
		return nil
	})
}

// ListActiveMembers lists the group's active members with the number of
// praises each received in the group.
func (s *Store) ListActiveMembers(ctx context.Context, groupID string) ([]models.MemberSummary, error) {
	var rows []struct {
		UserID        string         `db:"user_id"`
		Role          string         `db:"role"`
		JoinedAt      int64          `db:"joined_at"`
		Name          string         `db:"name"`
		AvatarURL     sql.NullString `db:"avatar_url"`
		ReceivedCount int            `db:"received_count"`
	}
	query := `
		SELECT m.user_id, m.role, m.joined_at,
			COALESCE(u.name, '') AS name,
			u.avatar_url,
			(SELECT COUNT(*) FROM praise_messages p WHERE p.group_id = m.group_id AND p.receiver_id = m.user_id) AS received_count
		FROM group_members m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ? AND m.is_active = TRUE
		ORDER BY m.joined_at, m.id
	`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), groupID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]models.MemberSummary, 0, len(rows))
	for _, r := range rows {
		members = append(members, models.MemberSummary{
			User:                models.UserRef{ID: r.UserID, Name: r.Name, AvatarURL: r.AvatarURL.String},
			Role:                models.Role(r.Role),
			JoinedAt:            fromMillis(r.JoinedAt),
			ReceivedPraiseCount: r.ReceivedCount,
		})
	}
	return members, nil
}

// ListMembershipHistory lists every membership row of the user in the group,
// oldest first.
func (s *Store) ListMembershipHistory(ctx context.Context, groupID, userID string) ([]models.Membership, error) {
	var rows []membershipRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		"SELECT "+membershipColumns+" FROM group_members WHERE group_id = ? AND user_id = ? ORDER BY joined_at, id"),
		groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	history := make([]models.Membership, 0, len(rows))
	for _, r := range rows {
		history = append(history, r.model())
	}
	return history, nil
}
