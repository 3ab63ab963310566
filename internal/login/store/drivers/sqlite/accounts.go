package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/store"
)

type accountsRepo struct {
	q querier
}

func (r *accountsRepo) GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, identifier, login_code_hash, login_code_valid_until, created_at, updated_at
		FROM accounts
		WHERE identifier = ? COLLATE NOCASE`,
		identifier,
	)

	var (
		id, ident            string
		codeHash             sql.NullString
		validUntil           sql.NullTime
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &ident, &codeHash, &validUntil, &createdAt, &updatedAt); err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	return mapAccount(id, ident, codeHash, validUntil, createdAt, updatedAt), nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	var codeHash sql.NullString
	if a.CodeHash != nil {
		codeHash = sql.NullString{String: *a.CodeHash, Valid: true}
	}
	var validUntil sql.NullTime
	if a.CodeValidUntil != nil {
		validUntil = sql.NullTime{Time: *a.CodeValidUntil, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (id, identifier, login_code_hash, login_code_valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Identifier, codeHash, validUntil, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// SetLoginCode writes the two code columns and nothing else. Deliberately no
// updated_at bump: issuing a code must not look like an account edit.
func (r *accountsRepo) SetLoginCode(ctx context.Context, accountID, codeHash string, validUntil time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET login_code_hash = ?, login_code_valid_until = ?
		WHERE id = ?`,
		codeHash, validUntil.UTC(), accountID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) ClearLoginCode(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET login_code_hash = NULL, login_code_valid_until = NULL
		WHERE id = ?`,
		accountID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) PurgeExpiredLoginCodes(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET login_code_hash = NULL, login_code_valid_until = NULL
		WHERE login_code_valid_until IS NOT NULL AND login_code_valid_until < ?`,
		cutoff.UTC(),
	)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
