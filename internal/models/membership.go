package models

import "time"

// Role is a member's authority within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership is one stint of a user in a group.
// Rows are deactivated, never removed, so the join/leave history survives.
type Membership struct {
	ID       string
	GroupID  string
	UserID   string
	Role     Role
	JoinedAt time.Time

	// LeftAt is set when the membership is deactivated.
	LeftAt *time.Time

	IsActive bool
}

// IsAdmin reports whether the membership is an active admin membership.
func (m *Membership) IsAdmin() bool {
	return m != nil && m.IsActive && m.Role == RoleAdmin
}

// MemberSummary is an active member as listed inside a group.
type MemberSummary struct {
	User     UserRef
	Role     Role
	JoinedAt time.Time

	// ReceivedPraiseCount counts praises the member received in this group.
	ReceivedPraiseCount int
}
