package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/event"
	"github.com/empuxa/totp-login/internal/login/ratelimit"
	"github.com/empuxa/totp-login/internal/login/store"
	"github.com/empuxa/totp-login/pkg/cryptox"
	"github.com/empuxa/totp-login/pkg/slogx"
)

// CodeService runs phase 2: verify a submitted code against the pending
// login and either complete authentication or fail back into the phase.
//
// The entire decision (rate-limit check, expiry check, verification and
// invalidation) happens inside one exclusive store transaction, so two
// concurrent submissions for the same account serialize and the loser sees
// the winner's committed state. A single code can never be spent twice.
type CodeService struct {
	Store    store.Store
	Limiter  ratelimit.Limiter
	Notifier Notifier
	Events   event.Sink

	Config   CodeConfig
	Override OverridePolicy

	// Environment is the runtime environment label consulted by the
	// override policy (e.g. "local", "staging", "production").
	Environment string

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (s *CodeService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Complete handles one code submission. digits is the ordered sequence the
// user posted, one string per digit; leading zeros are preserved.
func (s *CodeService) Complete(ctx context.Context, pending *domain.PendingLogin, digits []string, ip string) (domain.Account, error) {
	cfg := s.Config.withDefaults()

	if pending == nil || pending.Identifier == "" {
		s.emit(ctx, event.KindMissingSessionInformation, "", ip, nil)
		return domain.Account{}, ErrMissingSession
	}

	submitted, err := s.formatCode(ctx, pending.Identifier, ip, digits, cfg.Length)
	if err != nil {
		return domain.Account{}, err
	}

	var res verifyResult
	txErr := s.Store.WithTx(ctx, func(tx store.Tx) error {
		res = s.verify(ctx, tx, pending.Identifier, submitted, ip, cfg)
		// Outcomes like an expired-code reissue still need their writes
		// committed, so only infrastructure errors abort the transaction.
		if res.outcome != nil && !isTerminalOutcome(res.outcome) {
			return res.outcome
		}
		return nil
	})
	if txErr != nil {
		return domain.Account{}, fmt.Errorf("code phase: %w", txErr)
	}

	if res.reissuedCode != "" {
		// The replacement code is committed; deliver it outside the lock.
		s.notifyReissue(ctx, res.reissueTo, res.reissuedCode, ip)
	}

	if res.outcome != nil {
		return domain.Account{}, res.outcome
	}
	return res.account, nil
}

// verifyResult carries the decision out of the exclusive section. outcome
// nil means authenticated; reissuedCode is set when expiry triggered a
// fresh issuance that still needs delivering.
type verifyResult struct {
	account      domain.Account
	outcome      error
	reissuedCode string
	reissueTo    domain.Account
}

// verify holds the security-ordered core of the phase and runs entirely
// inside the exclusive transaction.
func (s *CodeService) verify(
	ctx context.Context,
	tx store.Tx,
	identifier, submitted, ip string,
	cfg CodeConfig,
) verifyResult {
	key := codeThrottleKey(identifier)

	account, lookupErr := tx.Accounts().GetAccountByIdentifier(ctx, identifier)
	if lookupErr != nil && !errors.Is(lookupErr, store.ErrNotFound) {
		return verifyResult{outcome: fmt.Errorf("account lookup: %w", lookupErr)}
	}
	accountMissing := errors.Is(lookupErr, store.ErrNotFound)

	if cfg.EnableThrottling {
		blocked, err := s.Limiter.TooManyAttempts(ctx, key, cfg.MaxAttempts)
		if err != nil {
			return verifyResult{outcome: err}
		}
		if blocked {
			return verifyResult{outcome: s.failRateLimited(ctx, key, identifier, ip)}
		}
	}

	// Expiry only applies to a code that actually exists. A missing account
	// or an already-consumed code falls through to the comparison below so
	// the request cost stays uniform.
	if !accountMissing && account.HasActiveCode() && !s.now().Before(*account.CodeValidUntil) {
		s.emit(ctx, event.KindCodeExpired, identifier, ip, nil)

		// Reissue for UX: the user most likely just took too long.
		code, err := issueCode(ctx, tx.Accounts(), cfg, s.now(), account.ID)
		if err != nil {
			return verifyResult{outcome: fmt.Errorf("reissue: %w", err)}
		}
		return verifyResult{outcome: ErrCodeExpired, reissuedCode: code, reissueTo: account}
	}

	// Exactly one hash comparison runs on every request. When there is no
	// stored hash (unknown account, consumed code) the dummy stands in so
	// response latency does not reveal which case we are in. The override
	// policy is consulted only after the comparison has fully evaluated.
	stored := cryptox.DummyCodeHash()
	if !accountMissing && account.CodeHash != nil {
		stored = *account.CodeHash
	}
	match := cryptox.VerifyCode(submitted, stored)
	override := s.Override.Allows(s.Environment, identifier, submitted)

	if (match || override) && !accountMissing {
		if err := s.Limiter.Clear(ctx, key); err != nil {
			return verifyResult{outcome: err}
		}
		// Invalidate before the lock is released so a concurrent submission
		// of the same code cannot validate again.
		if err := tx.Accounts().ClearLoginCode(ctx, account.ID); err != nil {
			return verifyResult{outcome: fmt.Errorf("invalidate code: %w", err)}
		}

		s.emit(ctx, event.KindLoggedInViaTotp, identifier, ip, nil)
		return verifyResult{account: account}
	}

	return verifyResult{outcome: s.failIncorrect(ctx, key, identifier, ip, cfg)}
}

func (s *CodeService) formatCode(ctx context.Context, identifier, ip string, digits []string, length int) (string, error) {
	if len(digits) == 0 {
		s.emit(ctx, event.KindMissingCodeData, identifier, ip, nil)
		return "", ErrMissingCode
	}
	if len(digits) != length {
		s.emit(ctx, event.KindInvalidCodeFormat, identifier, ip, nil)
		return "", ErrInvalidCodeFormat
	}

	var b strings.Builder
	for _, d := range digits {
		if len(d) != 1 || d[0] < '0' || d[0] > '9' {
			s.emit(ctx, event.KindInvalidCodeFormat, identifier, ip, nil)
			return "", ErrInvalidCodeFormat
		}
		b.WriteString(d)
	}
	return b.String(), nil
}

func (s *CodeService) failRateLimited(ctx context.Context, key, identifier, ip string) error {
	retryIn, err := s.Limiter.AvailableIn(ctx, key)
	if err != nil {
		return err
	}

	first, err := s.Limiter.MarkBlocked(ctx, key, retryIn)
	if err != nil {
		return err
	}

	detail := map[string]string{"retry_in": strconv.Itoa(int(retryIn.Seconds()))}
	if first {
		s.emit(ctx, event.KindCodeRateLimitExceeded, identifier, ip, detail)
	} else {
		s.emit(ctx, event.KindCodeRateLimitContinued, identifier, ip, detail)
	}

	return &RateLimitError{RetryIn: retryIn}
}

func (s *CodeService) failIncorrect(ctx context.Context, key, identifier, ip string, cfg CodeConfig) error {
	failure := &IncorrectCodeError{}

	if cfg.EnableThrottling {
		attempts, err := s.Limiter.Hit(ctx, key)
		if err != nil {
			return err
		}
		if cfg.DiscloseAttemptsLeft {
			left := max(cfg.MaxAttempts-int(attempts), 0)
			failure.AttemptsLeft = &left
		}
	}

	s.emit(ctx, event.KindIncorrectCode, identifier, ip, nil)
	return failure
}

func (s *CodeService) notifyReissue(ctx context.Context, account domain.Account, code, ip string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(ctx, account, code, ip); err != nil {
		// Delivery failure is not a phase failure.
		slogx.FromContext(ctx).Error("failed to send reissued login code",
			"identifier", account.Identifier,
			"err", err,
		)
	}
}

func (s *CodeService) emit(ctx context.Context, kind event.Kind, identifier, ip string, detail map[string]string) {
	if s.Events == nil {
		return
	}
	s.Events.Emit(ctx, event.Event{
		Kind:       kind,
		Identifier: identifier,
		IP:         ip,
		At:         s.now(),
		Detail:     detail,
	})
}

// isTerminalOutcome separates protocol outcomes (committed, surfaced to the
// user) from infrastructure failures (rolled back, retried).
func isTerminalOutcome(err error) bool {
	var rateLimited *RateLimitError
	var incorrect *IncorrectCodeError
	return errors.Is(err, ErrCodeExpired) ||
		errors.As(err, &rateLimited) ||
		errors.As(err, &incorrect)
}

func codeThrottleKey(identifier string) string {
	// Deliberately no IP component: the account stays protected even when
	// the attacker rotates sources, and a legitimate user who switches
	// networks keeps their attempt budget.
	return strings.ToLower(identifier)
}
