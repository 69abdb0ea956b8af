// Package apperr defines the closed set of failures the membership and praise
// components report to their callers.
//
// Callers branch on Kind (or use errors.Is with the sentinels below) rather
// than on message text. CooldownActive errors carry the next eligible time.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindNotAuthorized
	KindNotFound
	KindAlreadyMember
	KindGroupFull
	KindOwnerCannotLeave
	KindCannotKickAdmin
	KindTargetNotActiveMember
	KindNotMembers
	KindCooldownActive
	KindMessageTooLong
	KindValidation
	KindStoreConflict
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindUnauthenticated:       "unauthenticated",
	KindNotAuthorized:         "not_authorized",
	KindNotFound:              "not_found",
	KindAlreadyMember:         "already_member",
	KindGroupFull:             "group_full",
	KindOwnerCannotLeave:      "owner_cannot_leave",
	KindCannotKickAdmin:       "cannot_kick_admin",
	KindTargetNotActiveMember: "target_not_active_member",
	KindNotMembers:            "not_members",
	KindCooldownActive:        "cooldown_active",
	KindMessageTooLong:        "message_too_long",
	KindValidation:            "validation_error",
	KindStoreConflict:         "store_conflict",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure.
type Error struct {
	Kind Kind

	// Msg is a short human readable detail. It is never used for branching.
	Msg string

	// NextAllowedAt is set for KindCooldownActive.
	NextAllowedAt time.Time

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Kind == KindCooldownActive && !e.NextAllowedAt.IsZero() {
		msg += fmt.Sprintf(" (next allowed at %s)", e.NextAllowedAt.UTC().Format(time.RFC3339))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.ErrGroupFull) works regardless of payload.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated}
	ErrNotAuthorized         = &Error{Kind: KindNotAuthorized}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrAlreadyMember         = &Error{Kind: KindAlreadyMember}
	ErrGroupFull             = &Error{Kind: KindGroupFull}
	ErrOwnerCannotLeave      = &Error{Kind: KindOwnerCannotLeave}
	ErrCannotKickAdmin       = &Error{Kind: KindCannotKickAdmin}
	ErrTargetNotActiveMember = &Error{Kind: KindTargetNotActiveMember}
	ErrNotMembers            = &Error{Kind: KindNotMembers}
	ErrCooldownActive        = &Error{Kind: KindCooldownActive}
	ErrMessageTooLong        = &Error{Kind: KindMessageTooLong}
	ErrValidation            = &Error{Kind: KindValidation}
	ErrStoreConflict         = &Error{Kind: KindStoreConflict}
)

// New returns an Error of the given kind with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// CooldownActive returns a KindCooldownActive error carrying next.
func CooldownActive(next time.Time) *Error {
	return &Error{Kind: KindCooldownActive, NextAllowedAt: next}
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NextAllowedAt extracts the next eligible time from a cooldown error.
func NextAllowedAt(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindCooldownActive && !e.NextAllowedAt.IsZero() {
		return e.NextAllowedAt, true
	}
	return time.Time{}, false
}
