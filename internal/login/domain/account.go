package domain

import "time"

// Account is the slice of the host's user record this protocol needs. The
// host owns the full record; we only read the identifier and mutate the two
// code columns, always together.
type Account struct {
	ID         string
	Identifier string // unique, compared case-insensitively

	CodeHash       *string    // Argon2id hash of the current login code (nullable)
	CodeValidUntil *time.Time // nullable, set together with CodeHash

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveCode reports whether a code has been issued and not yet
// consumed. It does not check expiry; callers own that decision.
func (a Account) HasActiveCode() bool {
	return a.CodeHash != nil && a.CodeValidUntil != nil
}
