package service

import "connectrpc.com/connect"

const (
	AccountServiceName = "kudos.v1.AccountService"
	GroupServiceName   = "kudos.v1.GroupService"
	PraiseServiceName  = "kudos.v1.PraiseService"
)

const (
	AccountServiceSignInProcedure        = "/kudos.v1.AccountService/SignIn"
	AccountServiceGetProfileProcedure    = "/kudos.v1.AccountService/GetProfile"
	AccountServiceUpdateProfileProcedure = "/kudos.v1.AccountService/UpdateProfile"
	AccountServiceGetStatsProcedure      = "/kudos.v1.AccountService/GetStats"
)

const (
	GroupServiceCreateGroupProcedure      = "/kudos.v1.GroupService/CreateGroup"
	GroupServiceGetGroupProcedure         = "/kudos.v1.GroupService/GetGroup"
	GroupServiceListMyGroupsProcedure     = "/kudos.v1.GroupService/ListMyGroups"
	GroupServiceListMembersProcedure      = "/kudos.v1.GroupService/ListMembers"
	GroupServiceUpdateGroupProcedure      = "/kudos.v1.GroupService/UpdateGroup"
	GroupServicePreviewInviteProcedure    = "/kudos.v1.GroupService/PreviewInvite"
	GroupServiceJoinGroupProcedure        = "/kudos.v1.GroupService/JoinGroup"
	GroupServiceLeaveGroupProcedure       = "/kudos.v1.GroupService/LeaveGroup"
	GroupServiceKickMemberProcedure       = "/kudos.v1.GroupService/KickMember"
	GroupServiceTransferAdminProcedure    = "/kudos.v1.GroupService/TransferAdmin"
	GroupServiceDeleteGroupProcedure      = "/kudos.v1.GroupService/DeleteGroup"
	GroupServiceRotateInviteCodeProcedure = "/kudos.v1.GroupService/RotateInviteCode"
)

const (
	PraiseServiceCanPraiseProcedure        = "/kudos.v1.PraiseService/CanPraise"
	PraiseServiceSendPraiseProcedure       = "/kudos.v1.PraiseService/SendPraise"
	PraiseServiceDeletePraiseProcedure     = "/kudos.v1.PraiseService/DeletePraise"
	PraiseServiceListGroupPraisesProcedure = "/kudos.v1.PraiseService/ListGroupPraises"
	PraiseServiceListReceivedProcedure     = "/kudos.v1.PraiseService/ListReceived"
	PraiseServiceListSentProcedure         = "/kudos.v1.PraiseService/ListSent"
)

// PublicProcedures can be called without a bearer token.
var PublicProcedures = []string{
	GroupServicePreviewInviteProcedure,
}

// handlerOptions puts the JSON codec in front of the caller's options.
func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}
