package service

import "time"

// Defaults mirror the configuration surface: 6-digit codes valid for ten
// minutes, five attempts per phase per window.
const (
	DefaultCodeLength  = 6
	DefaultCodeTTL     = 10 * time.Minute
	DefaultMaxAttempts = 5
)

// IdentifierConfig controls phase 1.
type IdentifierConfig struct {
	// ValidateEmail enables syntactic email validation of the identifier.
	ValidateEmail bool

	// MaxAttempts tolerated per throttle key within the rate-limit window.
	MaxAttempts int

	// EnableThrottling turns the phase-1 limiter on. When off, no amount of
	// probing trips a block.
	EnableThrottling bool
}

// CodeConfig controls phase 2 and code issuance.
type CodeConfig struct {
	Length           int
	TTL              time.Duration
	MaxAttempts      int
	EnableThrottling bool

	// DiscloseAttemptsLeft includes the remaining attempt budget in
	// incorrect-code failures. A UX/security trade-off; off means a generic
	// message.
	DiscloseAttemptsLeft bool
}

func (c IdentifierConfig) withDefaults() IdentifierConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

func (c CodeConfig) withDefaults() CodeConfig {
	if c.Length <= 0 {
		c.Length = DefaultCodeLength
	}
	if c.TTL <= 0 {
		c.TTL = DefaultCodeTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}
