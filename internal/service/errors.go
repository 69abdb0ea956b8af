package service

import (
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/kudos/internal/apperr"
)

// Response metadata attached to domain errors.
const (
	ErrorKindHeader     = "Error-Kind"
	NextAllowedAtHeader = "Next-Allowed-At"
)

var kindCodes = map[apperr.Kind]connect.Code{
	apperr.KindUnauthenticated:       connect.CodeUnauthenticated,
	apperr.KindNotAuthorized:         connect.CodePermissionDenied,
	apperr.KindNotFound:              connect.CodeNotFound,
	apperr.KindAlreadyMember:         connect.CodeAlreadyExists,
	apperr.KindGroupFull:             connect.CodeFailedPrecondition,
	apperr.KindOwnerCannotLeave:      connect.CodeFailedPrecondition,
	apperr.KindCannotKickAdmin:       connect.CodeFailedPrecondition,
	apperr.KindTargetNotActiveMember: connect.CodeFailedPrecondition,
	apperr.KindNotMembers:            connect.CodeFailedPrecondition,
	apperr.KindCooldownActive:        connect.CodeResourceExhausted,
	apperr.KindMessageTooLong:        connect.CodeInvalidArgument,
	apperr.KindValidation:            connect.CodeInvalidArgument,
	apperr.KindStoreConflict:         connect.CodeAborted,
}

var errInternal = errors.New("internal error")

// toConnectError maps a domain error onto a Connect error carrying the
// error kind (and, for cooldowns, the next allowed time) as metadata.
// Errors outside the taxonomy are logged and reported as CodeInternal
// without their message.
func toConnectError(logger *slog.Logger, err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	kind := apperr.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		logger.Error("Unexpected error", "error", err)
		return connect.NewError(connect.CodeInternal, errInternal)
	}

	out := connect.NewError(code, err)
	out.Meta().Set(ErrorKindHeader, kind.String())
	if next, ok := apperr.NextAllowedAt(err); ok {
		out.Meta().Set(NextAllowedAtHeader, next.UTC().Format(time.RFC3339Nano))
	}
	return out
}

// ErrorKind reads the domain error kind from a Connect error, as returned
// to clients. It returns "" for errors without one.
func ErrorKind(err error) string {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return ""
	}
	return connectErr.Meta().Get(ErrorKindHeader)
}
