package models

import (
	"time"

	"github.com/mmynk/kudos/internal/cooldown"
)

// DefaultMaxMembers is the capacity of a group created without one.
const DefaultMaxMembers = 50

// Group represents a private praise group.
// The owner always holds the group's single active admin membership.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Team Rocket").
	Name string

	// Description is optional free text.
	Description string

	// OwnerID is the user holding admin authority.
	OwnerID string

	// InviteCode grants join eligibility until rotated.
	InviteCode string

	// MaxMembers bounds the number of active memberships.
	MaxMembers int

	// Cooldown is the minimum interval between two praises of the same ordered pair.
	Cooldown cooldown.Policy

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupSummary is a group as listed for one of its members.
type GroupSummary struct {
	Group

	// Role is the listing user's role in the group.
	Role Role

	// JoinedAt is when the listing user's current membership started.
	JoinedAt time.Time

	MemberCount int
	PraiseCount int
}

// GroupPreview is what an invite link reveals before joining.
type GroupPreview struct {
	ID          string
	Name        string
	Description string
	OwnerName   string
	MemberCount int
	MaxMembers  int
}

// Full reports whether the previewed group has no free seat.
func (p GroupPreview) Full() bool {
	return p.MemberCount >= p.MaxMembers
}
