package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/store"
	"github.com/empuxa/totp-login/internal/login/store/drivers/sqlite"
	"github.com/empuxa/totp-login/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedAccount(t *testing.T, st store.Store, identifier string) domain.Account {
	t.Helper()

	a := domain.Account{ID: idx.New().String(), Identifier: identifier}
	require.NoError(t, st.Accounts().CreateAccount(context.Background(), a))
	return a
}

func TestGetAccountByIdentifierIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()
	seeded := seedAccount(t, st, "User@Example.com")

	got, err := st.Accounts().GetAccountByIdentifier(ctx, "user@example.COM")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, got.ID)
	require.Equal(t, "User@Example.com", got.Identifier)

	_, err = st.Accounts().GetAccountByIdentifier(ctx, "absent@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetAndClearLoginCode(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, st, "user@example.com")

	validUntil := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, st.Accounts().SetLoginCode(ctx, a.ID, "$argon2id$hash", validUntil))

	got, err := st.Accounts().GetAccountByIdentifier(ctx, a.Identifier)
	require.NoError(t, err)
	require.True(t, got.HasActiveCode())
	require.Equal(t, "$argon2id$hash", *got.CodeHash)
	require.WithinDuration(t, validUntil, *got.CodeValidUntil, time.Second)

	// Issuing a code is not an account edit.
	require.Equal(t, a.Identifier, got.Identifier)

	require.NoError(t, st.Accounts().ClearLoginCode(ctx, a.ID))

	got, err = st.Accounts().GetAccountByIdentifier(ctx, a.Identifier)
	require.NoError(t, err)
	require.False(t, got.HasActiveCode())
	require.Nil(t, got.CodeHash)
	require.Nil(t, got.CodeValidUntil)
}

func TestSetLoginCodeUnknownAccount(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	err := st.Accounts().SetLoginCode(context.Background(), "missing", "hash", time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, st, "user@example.com")

	wantErr := store.ErrNotFound
	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Accounts().SetLoginCode(ctx, a.ID, "hash", time.Now().Add(time.Minute)))
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	got, err := st.Accounts().GetAccountByIdentifier(ctx, a.Identifier)
	require.NoError(t, err)
	require.False(t, got.HasActiveCode())
}

func TestPurgeExpiredLoginCodes(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	stale := seedAccount(t, st, "stale@example.com")
	fresh := seedAccount(t, st, "fresh@example.com")

	now := time.Now().UTC()
	require.NoError(t, st.Accounts().SetLoginCode(ctx, stale.ID, "hash", now.Add(-time.Hour)))
	require.NoError(t, st.Accounts().SetLoginCode(ctx, fresh.ID, "hash", now.Add(time.Hour)))

	require.NoError(t, st.Accounts().PurgeExpiredLoginCodes(ctx, now))

	got, err := st.Accounts().GetAccountByIdentifier(ctx, stale.Identifier)
	require.NoError(t, err)
	require.False(t, got.HasActiveCode())

	got, err = st.Accounts().GetAccountByIdentifier(ctx, fresh.Identifier)
	require.NoError(t, err)
	require.True(t, got.HasActiveCode())
}
