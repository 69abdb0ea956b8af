package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/kudos/internal/apperr"
	"github.com/mmynk/kudos/internal/auth"
	"github.com/mmynk/kudos/internal/membership"
	"github.com/mmynk/kudos/internal/models"
)

// GroupService implements kudos.v1.GroupService on top of membership.Manager.
type GroupService struct {
	members  *membership.Manager
	identity auth.Identity
	logger   *slog.Logger
}

// NewGroupService creates a GroupService.
func NewGroupService(members *membership.Manager, identity auth.Identity, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{members: members, identity: identity, logger: logger}
}

// Handler returns the path prefix and handler serving every GroupService procedure.
func (s *GroupService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(GroupServiceCreateGroupProcedure, connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, s.CreateGroup, opts...))
	mux.Handle(GroupServiceGetGroupProcedure, connect.NewUnaryHandler(GroupServiceGetGroupProcedure, s.GetGroup, opts...))
	mux.Handle(GroupServiceListMyGroupsProcedure, connect.NewUnaryHandler(GroupServiceListMyGroupsProcedure, s.ListMyGroups, opts...))
	mux.Handle(GroupServiceListMembersProcedure, connect.NewUnaryHandler(GroupServiceListMembersProcedure, s.ListMembers, opts...))
	mux.Handle(GroupServiceUpdateGroupProcedure, connect.NewUnaryHandler(GroupServiceUpdateGroupProcedure, s.UpdateGroup, opts...))
	mux.Handle(GroupServicePreviewInviteProcedure, connect.NewUnaryHandler(GroupServicePreviewInviteProcedure, s.PreviewInvite, opts...))
	mux.Handle(GroupServiceJoinGroupProcedure, connect.NewUnaryHandler(GroupServiceJoinGroupProcedure, s.JoinGroup, opts...))
	mux.Handle(GroupServiceLeaveGroupProcedure, connect.NewUnaryHandler(GroupServiceLeaveGroupProcedure, s.LeaveGroup, opts...))
	mux.Handle(GroupServiceKickMemberProcedure, connect.NewUnaryHandler(GroupServiceKickMemberProcedure, s.KickMember, opts...))
	mux.Handle(GroupServiceTransferAdminProcedure, connect.NewUnaryHandler(GroupServiceTransferAdminProcedure, s.TransferAdmin, opts...))
	mux.Handle(GroupServiceDeleteGroupProcedure, connect.NewUnaryHandler(GroupServiceDeleteGroupProcedure, s.DeleteGroup, opts...))
	mux.Handle(GroupServiceRotateInviteCodeProcedure, connect.NewUnaryHandler(GroupServiceRotateInviteCodeProcedure, s.RotateInviteCode, opts...))
	return "/" + GroupServiceName + "/", mux
}

// CreateGroup creates a group owned by the caller.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	params := membership.CreateGroupParams{
		Name:        req.Msg.Name,
		Description: req.Msg.Description,
		MaxMembers:  req.Msg.MaxMembers,
	}
	policy, err := fromPolicy(req.Msg.Cooldown)
	if err != nil {
		return nil, toConnectError(s.logger, apperr.Validation("%v", err))
	}
	if policy != nil {
		params.Cooldown = *policy
	}

	group, err := s.members.CreateGroup(ctx, userID, params)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	out := toGroup(group)
	out.Role = string(models.RoleAdmin)
	out.MemberCount = 1
	return connect.NewResponse(&CreateGroupResponse{Group: out}), nil
}

// GetGroup returns a group to one of its members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	view, err := s.members.GetGroup(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&GetGroupResponse{Group: toGroupView(view)}), nil
}

// ListMyGroups lists the caller's groups.
func (s *GroupService) ListMyGroups(ctx context.Context, req *connect.Request[ListMyGroupsRequest]) (*connect.Response[ListMyGroupsResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	groups, err := s.members.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = toGroupSummary(g)
	}
	return connect.NewResponse(&ListMyGroupsResponse{Groups: out}), nil
}

// ListMembers lists the active members of a group.
func (s *GroupService) ListMembers(ctx context.Context, req *connect.Request[ListMembersRequest]) (*connect.Response[ListMembersResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	members, err := s.members.ListMembers(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	out := make([]Member, len(members))
	for i, m := range members {
		out[i] = toMember(m)
	}
	return connect.NewResponse(&ListMembersResponse{Members: out}), nil
}

// UpdateGroup changes group settings. Owner only.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[UpdateGroupRequest]) (*connect.Response[UpdateGroupResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	policy, err := fromPolicy(req.Msg.Cooldown)
	if err != nil {
		return nil, toConnectError(s.logger, apperr.Validation("%v", err))
	}

	group, err := s.members.UpdateGroup(ctx, req.Msg.GroupID, userID, membership.UpdateGroupParams{
		Name:        req.Msg.Name,
		Description: req.Msg.Description,
		MaxMembers:  req.Msg.MaxMembers,
		Cooldown:    policy,
	})
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&UpdateGroupResponse{Group: toGroup(group)}), nil
}

// PreviewInvite shows what an invite code leads to. It needs no sign-in.
func (s *GroupService) PreviewInvite(ctx context.Context, req *connect.Request[PreviewInviteRequest]) (*connect.Response[PreviewInviteResponse], error) {
	preview, err := s.members.PreviewInvite(ctx, req.Msg.InviteCode)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&PreviewInviteResponse{Preview: toPreview(preview)}), nil
}

// JoinGroup joins the caller to the group behind an invite code.
func (s *GroupService) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	group, err := s.members.JoinByInviteCode(ctx, req.Msg.InviteCode, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}

	out := toGroup(group)
	out.Role = string(models.RoleMember)
	return connect.NewResponse(&JoinGroupResponse{Group: out}), nil
}

// LeaveGroup ends the caller's membership.
func (s *GroupService) LeaveGroup(ctx context.Context, req *connect.Request[LeaveGroupRequest]) (*connect.Response[LeaveGroupResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	if err := s.members.LeaveGroup(ctx, req.Msg.GroupID, userID); err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&LeaveGroupResponse{}), nil
}

// KickMember removes a member. Admin only.
func (s *GroupService) KickMember(ctx context.Context, req *connect.Request[KickMemberRequest]) (*connect.Response[KickMemberResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	if err := s.members.KickMember(ctx, req.Msg.GroupID, userID, req.Msg.UserID); err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&KickMemberResponse{}), nil
}

// TransferAdmin hands ownership to another active member. Owner only.
func (s *GroupService) TransferAdmin(ctx context.Context, req *connect.Request[TransferAdminRequest]) (*connect.Response[TransferAdminResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	if err := s.members.TransferAdmin(ctx, req.Msg.GroupID, userID, req.Msg.NewAdminID); err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&TransferAdminResponse{}), nil
}

// DeleteGroup deletes a group with its memberships and praises. Owner only.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	if err := s.members.DeleteGroup(ctx, req.Msg.GroupID, userID); err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&DeleteGroupResponse{}), nil
}

// RotateInviteCode replaces the invite code. Owner only.
func (s *GroupService) RotateInviteCode(ctx context.Context, req *connect.Request[RotateInviteCodeRequest]) (*connect.Response[RotateInviteCodeResponse], error) {
	userID, err := callerID(ctx, s.identity)
	if err != nil {
		return nil, err
	}

	code, err := s.members.RotateInviteCode(ctx, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError(s.logger, err)
	}
	return connect.NewResponse(&RotateInviteCodeResponse{InviteCode: code}), nil
}

// callerID returns the authenticated caller or CodeUnauthenticated.
func callerID(ctx context.Context, identity auth.Identity) (string, error) {
	userID, ok := identity.CurrentUserID(ctx)
	if !ok {
		err := connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
		err.Meta().Set(ErrorKindHeader, apperr.KindUnauthenticated.String())
		return "", err
	}
	return userID, nil
}
