/*
Package sqlite provides a SQLite-backed implementation of depreciation.Store.

PURPOSE:
  Persists assets, categories and depreciation schedules in a single SQLite
  file. The schedule table is a cache of GenerateSchedule output, replaced
  wholesale per asset inside one SQL transaction.

KEY TABLES:
  categories:             Grouping with creation defaults (name unique)
  assets:                 Authoritative asset records
  depreciation_schedule:  One row per asset and year, UNIQUE(asset_id, year),
                          ON DELETE CASCADE from assets

AMOUNTS:
  Monetary columns hold fixed two-decimal strings ("1640.00") and are read
  back with decimal.NewFromString, so nothing passes through float64.

CONCURRENCY:
  A single connection (SetMaxOpenConns(1)) serializes all access, which
  also keeps ":memory:" databases on one connection. sync.RWMutex guards
  the Store; WithTx holds the write lock for the whole transaction and the
  transactional view never re-enters it.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./abacus.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  registry := depreciation.NewRegistry(store)

MIGRATION:
  Versioned migrations in migrations.go, tracked with PRAGMA user_version.

SEE ALSO:
  - depreciation/store.go: Interface definitions
  - depreciation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/abacus/asset-engine/depreciation"
)

// Store implements depreciation.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ depreciation.Store = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store depreciation.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every operation on one *sql.Tx. It takes no locks; the
// owning Store's WithTx already holds the write lock.
type txStore struct {
	tx *sql.Tx
}

var _ depreciation.Store = (*txStore)(nil)

// Nested transactions join the outer one.
func (ts *txStore) WithTx(_ context.Context, fn func(store depreciation.Store) error) error {
	return fn(ts)
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = time.RFC3339

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func money(d decimal.Decimal) string {
	return depreciation.Round2(d).StringFixed(2)
}

func nullMoney(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: money(*d), Valid: true}
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
