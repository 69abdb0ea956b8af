package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesKindRegardlessOfPayload(t *testing.T) {
	err := New(KindGroupFull, "group %s has %d seats", "g1", 2)

	assert.True(t, errors.Is(err, ErrGroupFull))
	assert.False(t, errors.Is(err, ErrAlreadyMember))

	wrapped := fmt.Errorf("join: %w", err)
	assert.True(t, errors.Is(wrapped, ErrGroupFull))
	assert.Equal(t, KindGroupFull, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestCooldownActiveCarriesNextAllowedAt(t *testing.T) {
	next := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := fmt.Errorf("send: %w", CooldownActive(next))

	got, ok := NextAllowedAt(err)
	require.True(t, ok)
	assert.True(t, got.Equal(next))
	assert.Contains(t, err.Error(), "2026-03-01T10:00:00Z")

	_, ok = NextAllowedAt(ErrNotMembers)
	assert.False(t, ok)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("unique constraint failed")
	err := Wrap(KindStoreConflict, cause, "insert membership")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStoreConflict)
	assert.Equal(t, "store_conflict: insert membership: unique constraint failed", err.Error())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "cannot_kick_admin", KindCannotKickAdmin.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
