// Package store defines the data access contract for the login protocol.
// Concrete drivers (sqlite today) implement it; the services only ever see
// these interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrLockTimeout reports that the exclusive section could not be entered
	// in time. It is retryable and must never be conflated with a failed
	// code check.
	ErrLockTimeout = errors.New("store: lock acquisition timed out")
)

// Store is the root data access interface.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Tx starts an exclusive write transaction. While it is open, no other
	// writer can touch the database, which is the mutual-exclusion primitive
	// the code phase relies on: the rate-limit check, the expiry check and
	// the code invalidation all happen inside one Tx. The caller MUST call
	// Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within an exclusive write transaction and commits
	// when fn returns nil, rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByIdentifier looks an account up by its identifier. The
	// comparison is case-insensitive.
	GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error)

	// CreateAccount inserts an account. Account provisioning is owned by the
	// host; this exists for seeding and tests.
	CreateAccount(ctx context.Context, a domain.Account) error

	// SetLoginCode stores a code hash and its expiry together. It must not
	// touch any other column, updated_at included: issuing a code is not an
	// account edit.
	SetLoginCode(ctx context.Context, accountID, codeHash string, validUntil time.Time) error

	// ClearLoginCode removes the code hash and expiry together, under the
	// same no-unrelated-writes rule as SetLoginCode.
	ClearLoginCode(ctx context.Context, accountID string) error

	// PurgeExpiredLoginCodes clears code columns whose validity lapsed
	// before cutoff. Housekeeping only.
	PurgeExpiredLoginCodes(ctx context.Context, cutoff time.Time) error
}
