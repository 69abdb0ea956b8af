package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/kudos/internal/models"
	"github.com/mmynk/kudos/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(sqlx.NewDb(db, "sqlmock"), sqliteDialect), mock
}

func TestTransferOwnershipRollsBackWhenPromotionFails(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET owner_id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role = 'member'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role = 'admin'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.TransferOwnership(context.Background(), "g1", "owner", "gone", time.Now())
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferOwnershipRollsBackOnDriverError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET owner_id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role = 'member'")).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.TransferOwnership(context.Background(), "g1", "owner", "heir", time.Now())
	require.ErrorContains(t, err, "failed to demote admin")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferOwnershipReportsCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET owner_id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role = 'member'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_members SET role = 'admin'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := store.TransferOwnership(context.Background(), "g1", "owner", "heir", time.Now())
	require.ErrorContains(t, err, "failed to commit transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemberRollsBackWhenFull(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT max_members FROM groups")).
		WillReturnRows(sqlmock.NewRows([]string{"max_members"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_members")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_members")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.AddMember(context.Background(), "g1", "late", time.Now())
	require.ErrorIs(t, err, storage.ErrGroupFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePraiseRollsBackMessageWhenCooldownLost(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO praise_messages")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO praise_cooldowns")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	p := &models.PraiseMessage{GroupID: "g1", SenderID: "a", ReceiverID: "b", Emoji: "👍", IsPublic: true}
	err := store.CreatePraise(context.Background(), p, time.Now().Add(-time.Hour))
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
