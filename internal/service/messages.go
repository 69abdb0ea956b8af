package service

import "time"

// Wire types. Field names follow the JSON mapping of the kudos.v1 API.

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

type UserRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type CooldownPolicy struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type Group struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	OwnerID     string         `json:"ownerId"`
	InviteCode  string         `json:"inviteCode,omitempty"`
	MaxMembers  int            `json:"maxMembers"`
	Cooldown    CooldownPolicy `json:"cooldown"`

	// Viewer-relative fields, set when known.
	Role        string     `json:"role,omitempty"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty"`
	MemberCount int        `json:"memberCount,omitempty"`
	PraiseCount int        `json:"praiseCount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type Member struct {
	User                UserRef   `json:"user"`
	Role                string    `json:"role"`
	JoinedAt            time.Time `json:"joinedAt"`
	ReceivedPraiseCount int       `json:"receivedPraiseCount"`
}

type GroupPreview struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerName   string `json:"ownerName"`
	MemberCount int    `json:"memberCount"`
	MaxMembers  int    `json:"maxMembers"`
	Full        bool   `json:"full"`
}

type Praise struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"groupId"`
	GroupName   string    `json:"groupName,omitempty"`
	Sender      *UserRef  `json:"sender,omitempty"`
	Receiver    UserRef   `json:"receiver"`
	Emoji       string    `json:"emoji"`
	Message     string    `json:"message,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	IsAnonymous bool      `json:"isAnonymous"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AccountService

type SignInRequest struct{}

type SignInResponse struct {
	User User `json:"user"`
}

type GetProfileRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"userId,omitempty"`
}

type GetProfileResponse struct {
	User User `json:"user"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type UpdateProfileResponse struct {
	User User `json:"user"`
}

type GetStatsRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"userId,omitempty"`
}

type GetStatsResponse struct {
	Sent     int `json:"sent"`
	Received int `json:"received"`
}

// GroupService

type CreateGroupRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	MaxMembers  int             `json:"maxMembers,omitempty"`
	Cooldown    *CooldownPolicy `json:"cooldown,omitempty"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group Group `json:"group"`
}

type ListMyGroupsRequest struct{}

type ListMyGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type ListMembersRequest struct {
	GroupID string `json:"groupId"`
}

type ListMembersResponse struct {
	Members []Member `json:"members"`
}

// UpdateGroupRequest leaves absent fields unchanged.
type UpdateGroupRequest struct {
	GroupID     string          `json:"groupId"`
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	MaxMembers  *int            `json:"maxMembers,omitempty"`
	Cooldown    *CooldownPolicy `json:"cooldown,omitempty"`
}

type UpdateGroupResponse struct {
	Group Group `json:"group"`
}

type PreviewInviteRequest struct {
	InviteCode string `json:"inviteCode"`
}

type PreviewInviteResponse struct {
	Preview GroupPreview `json:"preview"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"inviteCode"`
}

type JoinGroupResponse struct {
	Group Group `json:"group"`
}

type LeaveGroupRequest struct {
	GroupID string `json:"groupId"`
}

type LeaveGroupResponse struct{}

type KickMemberRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type KickMemberResponse struct{}

type TransferAdminRequest struct {
	GroupID    string `json:"groupId"`
	NewAdminID string `json:"newAdminId"`
}

type TransferAdminResponse struct{}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId"`
}

type DeleteGroupResponse struct{}

type RotateInviteCodeRequest struct {
	GroupID string `json:"groupId"`
}

type RotateInviteCodeResponse struct {
	InviteCode string `json:"inviteCode"`
}

// PraiseService

type CanPraiseRequest struct {
	GroupID    string `json:"groupId"`
	ReceiverID string `json:"receiverId"`
}

type CanPraiseResponse struct {
	Allowed       bool       `json:"allowed"`
	NextAllowedAt *time.Time `json:"nextAllowedAt,omitempty"`
}

type SendPraiseRequest struct {
	GroupID     string `json:"groupId"`
	ReceiverID  string `json:"receiverId"`
	Emoji       string `json:"emoji,omitempty"`
	Message     string `json:"message,omitempty"`
	IsPublic    bool   `json:"isPublic"`
	IsAnonymous bool   `json:"isAnonymous"`
}

type SendPraiseResponse struct {
	Praise Praise `json:"praise"`
}

type DeletePraiseRequest struct {
	PraiseID string `json:"praiseId"`
}

type DeletePraiseResponse struct{}

type ListGroupPraisesRequest struct {
	GroupID string `json:"groupId"`
}

type ListReceivedRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListSentRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListPraisesResponse struct {
	Praises []Praise `json:"praises"`
}
