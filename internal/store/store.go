// Package store implements the EventStore: a durable, queryable,
// full-text-searchable record of ChangeEvents backed by a single SQLite
// file (modernc.org/sqlite, no cgo).
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/logging"
)

// Store is the SQLite-backed implementation of the EventStore contract.
// All methods are safe for concurrent use; SQLite's own locking plus WAL
// mode serialize writers while letting reads proceed concurrently.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open opens (or creates) the database at path and ensures its schema.
// path may be ":memory:" for ephemeral/test stores.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := &Store{db: db, logger: logging.GetLogger("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	s.logger.InfoWithFields("store opened", logging.Field("path", path))
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either standalone or inside Transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Transaction runs fn against a dedicated *sql.Tx, committing on success
// and rolling back if fn returns an error or panics: operations inside fn
// see a consistent snapshot and are atomic as a unit.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&Tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "commit transaction")
	}
	committed = true
	return nil
}

// Tx is the transaction-scoped handle passed to Transaction's callback.
type Tx struct {
	q querier
}
