// Package sqlstore implements storage.Store on top of sqlx, for SQLite and
// PostgreSQL.
//
// Invariants that must hold under concurrency are enforced in the database:
// capacity and duplicate checks run inside the join transaction, the one
// active admin per group is backed by a partial unique index, and the praise
// cooldown is advanced by a conditional upsert that is the serialization point
// for concurrent sends.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/kudos/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

type dialect struct {
	name   string
	driver string
	schema string

	// lockGroup is appended to the group read that starts a join.
	lockGroup string

	isUniqueViolation func(error) bool
}

var sqliteDialect = dialect{
	name:      "sqlite",
	driver:    "sqlite",
	schema:    sqliteSchema,
	lockGroup: "",
	isUniqueViolation: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
		return false
	},
}

var postgresDialect = dialect{
	name:      "postgres",
	driver:    "pgx",
	schema:    postgresSchema,
	lockGroup: " FOR UPDATE",
	isUniqueViolation: func(err error) bool {
		var pe *pgconn.PgError
		return errors.As(err, &pe) && pe.Code == "23505"
	},
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store implements storage.Store using database/sql through sqlx.
type Store struct {
	db *sqlx.DB
	d  dialect
}

// OpenSQLite opens (creating if needed) the SQLite database at dbPath and runs
// migrations.
//
// Writers are serialized on a single connection and every transaction takes
// the write lock up front, so a read-then-write inside a transaction cannot
// be interleaved with another writer.
func OpenSQLite(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return open(context.Background(), db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL using a pgx connection string and runs
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return open(ctx, db, postgresDialect)
}

func open(ctx context.Context, db *sqlx.DB, d dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return newStore(db, d), nil
}

func newStore(db *sqlx.DB, d dialect) *Store {
	return &Store{db: db, d: d}
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string {
	return s.d.name
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction. The transaction is committed only if fn
// returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execAffecting runs a write and returns the number of affected rows.
func execAffecting(ctx context.Context, e sqlx.ExecerContext, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
