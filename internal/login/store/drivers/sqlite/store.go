// Package sqlite implements the login store on modernc.org/sqlite.
//
// Transactions open with BEGIN IMMEDIATE (the _txlock DSN parameter), so a
// Tx holds the database write lock from the start. That single-writer
// property is what makes the code phase's critical section exclusive.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/store"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens (or creates) the database at path. Use ":memory:" in tests.
func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single writer connection sidesteps SQLITE_BUSY churn between our own
	// transactions; concurrency is arbitrated by the database lock.
	db.SetMaxOpenConns(1)

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts an exclusive write transaction.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapLockErr(err)
	}
	return newTx(tx), nil
}

// WithTx executes fn within an exclusive write transaction, handling
// commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapLockErr(err)
	}
	return nil
}

func (s *Store) Accounts() store.Accounts { return &accountsRepo{q: s.db} }

// querier abstracts *sql.DB and *sql.Tx so the repos serve both scopes.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapLockErr translates sqlite busy/locked failures and context deadline
// expiry into the retryable lock-timeout error.
func mapLockErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrLockTimeout, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %v", store.ErrLockTimeout, err)
	}
	return err
}

func mapAccount(id, identifier string, codeHash sql.NullString, validUntil sql.NullTime, createdAt, updatedAt time.Time) domain.Account {
	a := domain.Account{
		ID:         id,
		Identifier: identifier,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if codeHash.Valid {
		v := codeHash.String
		a.CodeHash = &v
	}
	if validUntil.Valid {
		v := validUntil.Time
		a.CodeValidUntil = &v
	}
	return a
}
