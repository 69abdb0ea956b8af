package models

import "time"

// User represents a signed-in person.
// Profiles are created from identity claims on first sign-in and never hard-deleted.
type User struct {
	// ID is the stable identifier issued by the identity provider.
	ID string

	// Name is the display name (1..50 characters).
	Name string

	// Email is the user's email address.
	Email string

	// AvatarURL is an optional absolute http(s) URL.
	AvatarURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRef is the public part of a User embedded in listings.
type UserRef struct {
	ID        string
	Name      string
	AvatarURL string
}

// PraiseStats counts praises a user has sent and received across all groups.
type PraiseStats struct {
	Sent     int
	Received int
}
