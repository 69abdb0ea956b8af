// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/kudos/internal/models"
)

// Sentinel errors returned by Store implementations. Callers match them with
// errors.Is; implementations may wrap them with more context.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyMember  = errors.New("already an active member")
	ErrGroupFull      = errors.New("group is full")
	ErrIsAdmin        = errors.New("membership is an admin membership")
	ErrForbidden      = errors.New("actor lacks the required role")
	ErrNotMembers     = errors.New("sender or receiver is not an active member")
	ErrCapacityTooLow = errors.New("capacity below active member count")

	// ErrConflict reports a lost race or a violated uniqueness constraint.
	ErrConflict = errors.New("conflicting concurrent update")
)

// UserStore persists user profiles.
type UserStore interface {
	// UpsertUser creates the profile or refreshes its email.
	// Name and avatar of an existing profile are left as the user edited them.
	UpsertUser(ctx context.Context, user *models.User) error

	// GetUser returns ErrNotFound if the profile does not exist.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// UpdateUserProfile sets name and avatar URL (empty clears it).
	UpdateUserProfile(ctx context.Context, id, name, avatarURL string, now time.Time) (*models.User, error)

	// GetPraiseStats counts praises sent and received by the user.
	GetPraiseStats(ctx context.Context, userID string) (models.PraiseStats, error)
}

// GroupStore persists groups.
type GroupStore interface {
	// CreateGroup inserts the group and its owner's admin membership atomically.
	// group.ID is generated if empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	GetGroup(ctx context.Context, id string) (*models.Group, error)
	GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error)
	GetGroupPreview(ctx context.Context, code string) (*models.GroupPreview, error)

	// UpdateGroupSettings writes name, description, capacity and cooldown policy.
	// Returns ErrCapacityTooLow if MaxMembers is below the active member count.
	UpdateGroupSettings(ctx context.Context, group *models.Group) error

	// SetInviteCode replaces the group's invite code.
	SetInviteCode(ctx context.Context, groupID, code string, now time.Time) error

	// DeleteGroup removes the group and every dependent row.
	DeleteGroup(ctx context.Context, id string) error

	// ListUserGroups lists groups where the user has an active membership.
	ListUserGroups(ctx context.Context, userID string) ([]models.GroupSummary, error)
}

// MembershipStore persists memberships.
type MembershipStore interface {
	// GetActiveMembership returns ErrNotFound if the user has no active membership.
	GetActiveMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)

	// AddMember inserts an active member row. The duplicate and capacity
	// checks run in the same transaction as the insert.
	// Returns ErrNotFound, ErrAlreadyMember or ErrGroupFull.
	AddMember(ctx context.Context, groupID, userID string, joinedAt time.Time) (*models.Membership, error)

	// DeactivateMember closes the user's active member (non-admin) membership.
	// If actorID is non-empty the actor must hold the group's active admin
	// membership at write time.
	// Returns ErrNotFound, ErrIsAdmin or ErrForbidden.
	DeactivateMember(ctx context.Context, groupID, userID, actorID string, leftAt time.Time) error

	// TransferOwnership moves ownership and the admin role from one active
	// member to another in a single transaction.
	// Returns ErrNotFound (group or target), ErrForbidden or ErrConflict.
	TransferOwnership(ctx context.Context, groupID, fromUserID, toUserID string, now time.Time) error

	// ListActiveMembers lists active members ordered by join time.
	ListActiveMembers(ctx context.Context, groupID string) ([]models.MemberSummary, error)

	// ListMembershipHistory lists every membership row of the user in the group.
	ListMembershipHistory(ctx context.Context, groupID, userID string) ([]models.Membership, error)
}

// PraiseStore persists praise messages and cooldown records.
type PraiseStore interface {
	// CreatePraise inserts the praise and advances the pair's cooldown record
	// in one transaction. The insert requires both parties to be active
	// members (ErrNotMembers); the cooldown upsert only succeeds when the
	// stored last praise time is not after threshold (ErrConflict).
	CreatePraise(ctx context.Context, praise *models.PraiseMessage, threshold time.Time) error

	GetPraise(ctx context.Context, id string) (*models.PraiseMessage, error)

	// DeletePraise removes a praise sent by senderID. Cooldown records are kept.
	DeletePraise(ctx context.Context, id, senderID string) error

	// GetCooldown returns ErrNotFound when the pair has no record.
	GetCooldown(ctx context.Context, groupID, senderID, receiverID string) (*models.CooldownRecord, error)

	// ListGroupPraises lists praises of the group visible to the viewer, newest first.
	// Entries are returned unredacted.
	ListGroupPraises(ctx context.Context, groupID, viewerID string) ([]models.PraiseEntry, error)

	ListReceivedPraises(ctx context.Context, userID string, limit int) ([]models.PraiseEntry, error)
	ListSentPraises(ctx context.Context, userID string, limit int) ([]models.PraiseEntry, error)
}

// Store defines the interface for all persistence operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the domain layer.
type Store interface {
	UserStore
	GroupStore
	MembershipStore
	PraiseStore

	// Close releases any resources held by the store.
	Close() error
}
