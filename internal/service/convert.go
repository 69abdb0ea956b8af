package service

import (
	"github.com/mmynk/kudos/internal/cooldown"
	"github.com/mmynk/kudos/internal/membership"
	"github.com/mmynk/kudos/internal/models"
)

func toUser(u *models.User, withEmail bool) User {
	out := User{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
	if withEmail {
		out.Email = u.Email
	}
	return out
}

func toUserRef(u models.UserRef) UserRef {
	return UserRef{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

func toPolicy(p cooldown.Policy) CooldownPolicy {
	return CooldownPolicy{Value: p.Value, Unit: string(p.Unit)}
}

func fromPolicy(p *CooldownPolicy) (*cooldown.Policy, error) {
	if p == nil {
		return nil, nil
	}
	unit, err := cooldown.ParseUnit(p.Unit)
	if err != nil {
		return nil, err
	}
	return &cooldown.Policy{Value: p.Value, Unit: unit}, nil
}

func toGroup(g *models.Group) Group {
	return Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		OwnerID:     g.OwnerID,
		InviteCode:  g.InviteCode,
		MaxMembers:  g.MaxMembers,
		Cooldown:    toPolicy(g.Cooldown),
		CreatedAt:   g.CreatedAt,
	}
}

func toGroupView(v *membership.GroupView) Group {
	out := toGroup(&v.Group)
	out.Role = string(v.ViewerRole)
	out.MemberCount = v.MemberCount
	return out
}

func toGroupSummary(s models.GroupSummary) Group {
	out := toGroup(&s.Group)
	joined := s.JoinedAt
	out.Role = string(s.Role)
	out.JoinedAt = &joined
	out.MemberCount = s.MemberCount
	out.PraiseCount = s.PraiseCount
	return out
}

func toMember(m models.MemberSummary) Member {
	return Member{
		User:                toUserRef(m.User),
		Role:                string(m.Role),
		JoinedAt:            m.JoinedAt,
		ReceivedPraiseCount: m.ReceivedPraiseCount,
	}
}

func toPreview(p *models.GroupPreview) GroupPreview {
	return GroupPreview{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerName:   p.OwnerName,
		MemberCount: p.MemberCount,
		MaxMembers:  p.MaxMembers,
		Full:        p.Full(),
	}
}

func toPraise(p *models.PraiseMessage) Praise {
	return Praise{
		ID:          p.ID,
		GroupID:     p.GroupID,
		Sender:      &UserRef{ID: p.SenderID},
		Receiver:    UserRef{ID: p.ReceiverID},
		Emoji:       p.Emoji,
		Message:     p.Message,
		IsPublic:    p.IsPublic,
		IsAnonymous: p.IsAnonymous,
		CreatedAt:   p.CreatedAt,
	}
}

func toPraiseEntries(entries []models.PraiseEntry) []Praise {
	out := make([]Praise, len(entries))
	for i, e := range entries {
		p := toPraise(&e.PraiseMessage)
		p.GroupName = e.GroupName
		p.Receiver = toUserRef(e.Receiver)
		p.Sender = nil
		if e.Sender != nil {
			ref := toUserRef(*e.Sender)
			p.Sender = &ref
		}
		out[i] = p
	}
	return out
}
