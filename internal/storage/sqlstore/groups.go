package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mmynk/kudos/internal/cooldown"
	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

const groupColumns = `g.id, g.name, g.description, g.owner_id, g.invite_code, g.max_members,
	g.praise_cooldown_value, g.praise_cooldown_unit, g.created_at, g.updated_at`

type groupRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Description   sql.NullString `db:"description"`
	OwnerID       string         `db:"owner_id"`
	InviteCode    string         `db:"invite_code"`
	MaxMembers    int            `db:"max_members"`
	CooldownValue int            `db:"praise_cooldown_value"`
	CooldownUnit  string         `db:"praise_cooldown_unit"`
	CreatedAt     int64          `db:"created_at"`
	UpdatedAt     int64          `db:"updated_at"`
}

func (r groupRow) model() models.Group {
	return models.Group{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		OwnerID:     r.OwnerID,
		InviteCode:  r.InviteCode,
		MaxMembers:  r.MaxMembers,
		Cooldown:    cooldown.Policy{Value: r.CooldownValue, Unit: cooldown.Unit(r.CooldownUnit)},
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
	}
}

// CreateGroup inserts the group and the owner's admin membership in one transaction.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = nowUTC()
	}
	if group.UpdatedAt.IsZero() {
		group.UpdatedAt = group.CreatedAt
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO groups (id, name, description, owner_id, invite_code, max_members,
				praise_cooldown_value, praise_cooldown_unit, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, tx.Rebind(query),
			group.ID,
			group.Name,
			nullString(group.Description),
			group.OwnerID,
			group.InviteCode,
			group.MaxMembers,
			group.Cooldown.Value,
			string(group.Cooldown.Unit),
			toMillis(group.CreatedAt),
			toMillis(group.UpdatedAt),
		)
		if s.d.isUniqueViolation(err) {
			return fmt.Errorf("failed to insert group: %w", storage.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(
			"INSERT INTO group_members (id, group_id, user_id, role, joined_at, is_active) VALUES (?, ?, ?, ?, ?, TRUE)"),
			uuid.New().String(), group.ID, group.OwnerID, string(models.RoleAdmin), toMillis(group.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert owner membership: %w", err)
		}
		return nil
	})
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return s.getGroupWhere(ctx, "g.id = ?", id)
}

// GetGroupByInviteCode retrieves the group currently holding the invite code.
func (s *Store) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	return s.getGroupWhere(ctx, "g.invite_code = ?", code)
}

func (s *Store) getGroupWhere(ctx context.Context, cond string, arg any) (*models.Group, error) {
	var row groupRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT "+groupColumns+" FROM groups g WHERE "+cond), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	g := row.model()
	return &g, nil
}

// GetGroupPreview retrieves what an invite link reveals about its group.
func (s *Store) GetGroupPreview(ctx context.Context, code string) (*models.GroupPreview, error) {
	var row struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		Description sql.NullString `db:"description"`
		MaxMembers  int            `db:"max_members"`
		OwnerName   string         `db:"owner_name"`
		MemberCount int            `db:"member_count"`
	}
	query := `
		SELECT g.id, g.name, g.description, g.max_members,
			COALESCE(u.name, '') AS owner_name,
			(SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id AND c.is_active = TRUE) AS member_count
		FROM groups g
		LEFT JOIN users u ON u.id = g.owner_id
		WHERE g.invite_code = ?
	`
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invite code: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group preview: %w", err)
	}

	return &models.GroupPreview{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description.String,
		OwnerName:   row.OwnerName,
		MemberCount: row.MemberCount,
		MaxMembers:  row.MaxMembers,
	}, nil
}

// UpdateGroupSettings writes the editable settings of a group. The capacity
// check against the active member count is part of the UPDATE itself.
func (s *Store) UpdateGroupSettings(ctx context.Context, group *models.Group) error {
	if group.UpdatedAt.IsZero() {
		group.UpdatedAt = nowUTC()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE groups
			SET name = ?, description = ?, max_members = ?,
				praise_cooldown_value = ?, praise_cooldown_unit = ?, updated_at = ?
			WHERE id = ?
				AND ? >= (SELECT COUNT(*) FROM group_members WHERE group_id = ? AND is_active = TRUE)
		`
		n, err := execAffecting(ctx, tx, tx.Rebind(query),
			group.Name,
			nullString(group.Description),
			group.MaxMembers,
			group.Cooldown.Value,
			string(group.Cooldown.Unit),
			toMillis(group.UpdatedAt),
			group.ID,
			group.MaxMembers,
			group.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}
		if n > 0 {
			return nil
		}

		exists, err := groupExists(ctx, tx, group.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
		}
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrCapacityTooLow)
	})
}

// SetInviteCode replaces the group's invite code. The old code stops resolving
// as soon as this returns.
func (s *Store) SetInviteCode(ctx context.Context, groupID, code string, now time.Time) error {
	n, err := execAffecting(ctx, s.db, s.db.Rebind(
		"UPDATE groups SET invite_code = ?, updated_at = ? WHERE id = ?"),
		code, toMillis(now), groupID)
	if s.d.isUniqueViolation(err) {
		return fmt.Errorf("failed to set invite code: %w", storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to set invite code: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

// DeleteGroup removes the group with its cooldowns, praises and memberships.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"praise_cooldowns", "praise_messages", "group_members"} {
			if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE group_id = ?"), id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", table, err)
			}
		}

		n, err := execAffecting(ctx, tx, tx.Rebind("DELETE FROM groups WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("group %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

// ListUserGroups lists the groups in which the user has an active membership,
// newest group first.
func (s *Store) ListUserGroups(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	var rows []struct {
		groupRow
		Role        string `db:"role"`
		JoinedAt    int64  `db:"joined_at"`
		MemberCount int    `db:"member_count"`
		PraiseCount int    `db:"praise_count"`
	}
	query := `
		SELECT ` + groupColumns + `, m.role, m.joined_at,
			(SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id AND c.is_active = TRUE) AS member_count,
			(SELECT COUNT(*) FROM praise_messages p WHERE p.group_id = g.id) AS praise_count
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ? AND m.is_active = TRUE
		ORDER BY g.created_at DESC, g.id
	`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]models.GroupSummary, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, models.GroupSummary{
			Group:       r.model(),
			Role:        models.Role(r.Role),
			JoinedAt:    fromMillis(r.JoinedAt),
			MemberCount: r.MemberCount,
			PraiseCount: r.PraiseCount,
		})
	}
	return groups, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func groupExists(ctx context.Context, q queryer, id string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind("SELECT COUNT(*) FROM groups WHERE id = ?"), id); err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return n > 0, nil
}
