package models

import "time"

// MaxPraiseMessageLength is the limit, in characters, of a trimmed praise message.
const MaxPraiseMessageLength = 500

// PraiseMessage is a praise sent from one member to another.
// It is immutable once created; only its sender may delete it.
type PraiseMessage struct {
	ID         string
	GroupID    string
	SenderID   string
	ReceiverID string
	Emoji      string

	// Message is optional, empty when absent.
	Message string

	IsPublic    bool
	IsAnonymous bool
	CreatedAt   time.Time
}

// PraiseEntry is a praise as shown to a viewer.
// Sender is nil (and SenderID empty) when the praise is anonymous.
type PraiseEntry struct {
	PraiseMessage

	Sender    *UserRef
	Receiver  UserRef
	GroupName string
}

// CooldownRecord holds the last praise time for an ordered pair within a group.
// sender->receiver and receiver->sender are tracked independently.
type CooldownRecord struct {
	GroupID       string
	SenderID      string
	ReceiverID    string
	LastPraisedAt time.Time
}
