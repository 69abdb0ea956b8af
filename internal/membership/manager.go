// Package membership implements the group membership state machine: creating
// groups, joining by invite code, leaving, kicking, admin transfer, invite
// rotation and deletion.
//
// Every group has exactly one active admin membership and it belongs to the
// group's owner. Operations that could break that (leave, kick, transfer) are
// checked here and backed by conditional writes in the store.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmynk/kudos/internal/apperr"
	"github.com/mmynk/kudos/internal/cooldown"
	"github.com/mmynk/kudos/internal/invite"
	"github.com/mmynk/kudos/internal/metrics"
	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

// MaxGroupNameLength is the limit, in characters, of a trimmed group name.
const MaxGroupNameLength = 100

// rotateAttempts bounds retries when a freshly drawn invite code collides.
const rotateAttempts = 3

// Manager owns group lifecycle and membership transitions.
type Manager struct {
	store   storage.Store
	logger  *slog.Logger
	now     func() time.Time
	newCode func() (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for joined_at, left_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCodeGenerator overrides the invite code generator.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.newCode = gen }
}

// NewManager creates a Manager backed by store.
func NewManager(store storage.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:   store,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: invite.Generate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateGroupParams are the inputs of CreateGroup. Zero values select defaults.
type CreateGroupParams struct {
	Name        string
	Description string

	// MaxMembers defaults to models.DefaultMaxMembers.
	MaxMembers int

	// Cooldown defaults to cooldown.Default.
	Cooldown cooldown.Policy
}

// UpdateGroupParams holds the settings to change. Nil fields are left as is.
type UpdateGroupParams struct {
	Name        *string
	Description *string
	MaxMembers  *int
	Cooldown    *cooldown.Policy
}

// GroupView is a group as seen by one of its active members.
type GroupView struct {
	models.Group
	ViewerRole  models.Role
	MemberCount int
}

// CreateGroup creates a group owned by ownerID together with the owner's
// admin membership.
func (m *Manager) CreateGroup(ctx context.Context, ownerID string, p CreateGroupParams) (*models.Group, error) {
	if err := requireIdentity(ownerID); err != nil {
		return nil, err
	}

	name, err := validateName(p.Name)
	if err != nil {
		return nil, err
	}

	maxMembers := p.MaxMembers
	if maxMembers == 0 {
		maxMembers = models.DefaultMaxMembers
	}
	if maxMembers < 1 {
		return nil, apperr.Validation("max members must be at least 1")
	}

	policy := p.Cooldown
	if policy == (cooldown.Policy{}) {
		policy = cooldown.Default
	}
	if err := policy.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid cooldown policy")
	}

	code, err := m.newCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	now := m.now()
	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		OwnerID:     ownerID,
		InviteCode:  code,
		MaxMembers:  maxMembers,
		Cooldown:    policy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateGroup(ctx, group); err != nil {
		m.logger.Error("CreateGroup failed", "owner_id", ownerID, "error", err)
		return nil, storeErr(err)
	}

	m.logger.Info("Group created", "group_id", group.ID, "owner_id", ownerID, "max_members", maxMembers, "cooldown", policy.String())
	metrics.RecordMembershipEvent("group_created")
	return group, nil
}

// JoinGroup adds userID as an active member of the group.
func (m *Manager) JoinGroup(ctx context.Context, groupID, userID string) error {
	if err := requireIdentity(userID); err != nil {
		return err
	}

	_, err := m.store.AddMember(ctx, groupID, userID, m.now())
	switch {
	case err == nil:
		m.logger.Info("Member joined", "group_id", groupID, "user_id", userID)
		metrics.RecordMembershipEvent("join")
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "group %s not found", groupID)
	case errors.Is(err, storage.ErrAlreadyMember):
		return apperr.New(apperr.KindAlreadyMember, "already a member of this group")
	case errors.Is(err, storage.ErrGroupFull):
		return apperr.New(apperr.KindGroupFull, "group has reached its member limit")
	default:
		m.logger.Error("JoinGroup failed", "group_id", groupID, "user_id", userID, "error", err)
		return storeErr(err)
	}
}

// JoinByInviteCode resolves an invite code and joins its group.
func (m *Manager) JoinByInviteCode(ctx context.Context, code, userID string) (*models.Group, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	group, err := m.store.GetGroupByInviteCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "invite code is invalid or has been rotated")
	}
	if err != nil {
		return nil, storeErr(err)
	}

	if err := m.JoinGroup(ctx, group.ID, userID); err != nil {
		return nil, err
	}
	return group, nil
}

// PreviewInvite describes the group behind an invite code without joining it.
// It needs no identity.
func (m *Manager) PreviewInvite(ctx context.Context, code string) (*models.GroupPreview, error) {
	preview, err := m.store.GetGroupPreview(ctx, strings.TrimSpace(code))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "invite code is invalid or has been rotated")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return preview, nil
}

// LeaveGroup deactivates the caller's membership. The owner cannot leave.
func (m *Manager) LeaveGroup(ctx context.Context, groupID, userID string) error {
	if err := requireIdentity(userID); err != nil {
		return err
	}

	group, err := m.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == userID {
		return apperr.New(apperr.KindOwnerCannotLeave, "transfer ownership before leaving")
	}

	err = m.store.DeactivateMember(ctx, groupID, userID, "", m.now())
	switch {
	case err == nil:
		m.logger.Info("Member left", "group_id", groupID, "user_id", userID)
		metrics.RecordMembershipEvent("leave")
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "not a member of this group")
	case errors.Is(err, storage.ErrIsAdmin):
		// Ownership moved to the caller after the owner check above.
		return apperr.New(apperr.KindOwnerCannotLeave, "transfer ownership before leaving")
	default:
		m.logger.Error("LeaveGroup failed", "group_id", groupID, "user_id", userID, "error", err)
		return storeErr(err)
	}
}

// KickMember deactivates targetUserID's membership on behalf of the group's admin.
func (m *Manager) KickMember(ctx context.Context, groupID, actingAdminID, targetUserID string) error {
	if err := requireIdentity(actingAdminID); err != nil {
		return err
	}
	if _, err := m.getGroup(ctx, groupID); err != nil {
		return err
	}

	actor, err := m.store.GetActiveMembership(ctx, groupID, actingAdminID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storeErr(err)
	}
	if !actor.IsAdmin() {
		return apperr.New(apperr.KindNotAuthorized, "only the group admin can remove members")
	}

	target, err := m.store.GetActiveMembership(ctx, groupID, targetUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "user is not an active member")
	}
	if err != nil {
		return storeErr(err)
	}
	if target.IsAdmin() {
		return apperr.New(apperr.KindCannotKickAdmin, "admins cannot be removed")
	}

	err = m.store.DeactivateMember(ctx, groupID, targetUserID, actingAdminID, m.now())
	switch {
	case err == nil:
		m.logger.Info("Member removed", "group_id", groupID, "user_id", targetUserID, "by", actingAdminID)
		metrics.RecordMembershipEvent("kick")
		return nil
	case errors.Is(err, storage.ErrForbidden):
		return apperr.New(apperr.KindNotAuthorized, "only the group admin can remove members")
	case errors.Is(err, storage.ErrIsAdmin):
		return apperr.New(apperr.KindCannotKickAdmin, "admins cannot be removed")
	case errors.Is(err, storage.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "user is not an active member")
	default:
		m.logger.Error("KickMember failed", "group_id", groupID, "user_id", targetUserID, "error", err)
		return storeErr(err)
	}
}

// TransferAdmin hands ownership and the admin role to another active member.
// Transferring to oneself is a no-op.
func (m *Manager) TransferAdmin(ctx context.Context, groupID, currentOwnerID, newAdminID string) error {
	if err := requireIdentity(currentOwnerID); err != nil {
		return err
	}

	group, err := m.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != currentOwnerID {
		return apperr.New(apperr.KindNotAuthorized, "only the owner can transfer ownership")
	}
	if newAdminID == currentOwnerID {
		return nil
	}

	if _, err := m.store.GetActiveMembership(ctx, groupID, newAdminID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindTargetNotActiveMember, "new admin must be an active member")
		}
		return storeErr(err)
	}

	err = m.store.TransferOwnership(ctx, groupID, currentOwnerID, newAdminID, m.now())
	switch {
	case err == nil:
		m.logger.Info("Ownership transferred", "group_id", groupID, "from", currentOwnerID, "to", newAdminID)
		metrics.RecordMembershipEvent("transfer")
		return nil
	case errors.Is(err, storage.ErrForbidden):
		return apperr.New(apperr.KindNotAuthorized, "only the owner can transfer ownership")
	case errors.Is(err, storage.ErrNotFound):
		return apperr.New(apperr.KindTargetNotActiveMember, "new admin must be an active member")
	default:
		m.logger.Error("TransferAdmin failed", "group_id", groupID, "error", err)
		return storeErr(err)
	}
}

// DeleteGroup removes the group and everything that belongs to it.
func (m *Manager) DeleteGroup(ctx context.Context, groupID, callerID string) error {
	if err := m.requireOwner(ctx, groupID, callerID, "only the owner can delete the group"); err != nil {
		return err
	}

	if err := m.store.DeleteGroup(ctx, groupID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "group %s not found", groupID)
		}
		m.logger.Error("DeleteGroup failed", "group_id", groupID, "error", err)
		return storeErr(err)
	}

	m.logger.Info("Group deleted", "group_id", groupID, "by", callerID)
	metrics.RecordMembershipEvent("group_deleted")
	return nil
}

// RotateInviteCode replaces the group's invite code. The previous code stops
// working immediately.
func (m *Manager) RotateInviteCode(ctx context.Context, groupID, callerID string) (string, error) {
	if err := m.requireOwner(ctx, groupID, callerID, "only the owner can rotate the invite code"); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < rotateAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}

		lastErr = m.store.SetInviteCode(ctx, groupID, code, m.now())
		if lastErr == nil {
			m.logger.Info("Invite code rotated", "group_id", groupID)
			metrics.RecordMembershipEvent("invite_rotated")
			return code, nil
		}
		if errors.Is(lastErr, storage.ErrNotFound) {
			return "", apperr.New(apperr.KindNotFound, "group %s not found", groupID)
		}
		if !errors.Is(lastErr, storage.ErrConflict) {
			break
		}
	}

	m.logger.Error("RotateInviteCode failed", "group_id", groupID, "error", lastErr)
	return "", storeErr(lastErr)
}

// UpdateGroup changes group settings. Only the owner may call it.
func (m *Manager) UpdateGroup(ctx context.Context, groupID, callerID string, p UpdateGroupParams) (*models.Group, error) {
	if err := requireIdentity(callerID); err != nil {
		return nil, err
	}

	group, err := m.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != callerID {
		return nil, apperr.New(apperr.KindNotAuthorized, "only the owner can change group settings")
	}

	if p.Name != nil {
		name, err := validateName(*p.Name)
		if err != nil {
			return nil, err
		}
		group.Name = name
	}
	if p.Description != nil {
		group.Description = strings.TrimSpace(*p.Description)
	}
	if p.MaxMembers != nil {
		if *p.MaxMembers < 1 {
			return nil, apperr.Validation("max members must be at least 1")
		}
		group.MaxMembers = *p.MaxMembers
	}
	if p.Cooldown != nil {
		if err := p.Cooldown.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "invalid cooldown policy")
		}
		group.Cooldown = *p.Cooldown
	}
	group.UpdatedAt = m.now()

	err = m.store.UpdateGroupSettings(ctx, group)
	switch {
	case err == nil:
		m.logger.Info("Group updated", "group_id", groupID, "max_members", group.MaxMembers, "cooldown", group.Cooldown.String())
		return group, nil
	case errors.Is(err, storage.ErrCapacityTooLow):
		return nil, apperr.Validation("max members cannot be below the current member count")
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperr.New(apperr.KindNotFound, "group %s not found", groupID)
	default:
		m.logger.Error("UpdateGroup failed", "group_id", groupID, "error", err)
		return nil, storeErr(err)
	}
}

// GetGroup returns the group if viewerID is one of its active members.
func (m *Manager) GetGroup(ctx context.Context, groupID, viewerID string) (*GroupView, error) {
	membership, err := m.requireMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}

	group, err := m.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := m.store.ListActiveMembers(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}

	return &GroupView{Group: *group, ViewerRole: membership.Role, MemberCount: len(members)}, nil
}

// ListUserGroups lists the groups userID is an active member of.
func (m *Manager) ListUserGroups(ctx context.Context, userID string) ([]models.GroupSummary, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	groups, err := m.store.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return groups, nil
}

// ListMembers lists the active members of a group to one of its members.
func (m *Manager) ListMembers(ctx context.Context, groupID, viewerID string) ([]models.MemberSummary, error) {
	if _, err := m.requireMember(ctx, groupID, viewerID); err != nil {
		return nil, err
	}
	members, err := m.store.ListActiveMembers(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}
	return members, nil
}

func (m *Manager) getGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := m.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "group %s not found", groupID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return group, nil
}

func (m *Manager) requireOwner(ctx context.Context, groupID, callerID, msg string) error {
	if err := requireIdentity(callerID); err != nil {
		return err
	}
	group, err := m.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != callerID {
		return apperr.New(apperr.KindNotAuthorized, "%s", msg)
	}
	return nil
}

func (m *Manager) requireMember(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	if _, err := m.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	membership, err := m.store.GetActiveMembership(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotAuthorized, "not a member of this group")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return membership, nil
}

func requireIdentity(userID string) error {
	if userID == "" {
		return apperr.New(apperr.KindUnauthenticated, "sign in required")
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperr.Validation("group name is required")
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return "", apperr.Validation("group name must be at most %d characters", MaxGroupNameLength)
	}
	return name, nil
}

// storeErr classifies store failures that no operation-specific case handled.
func storeErr(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return apperr.Wrap(apperr.KindStoreConflict, err, "concurrent update, try again")
	}
	return err
}
