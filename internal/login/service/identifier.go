package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
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

// IdentifierService runs phase 1: validate the identifier, throttle, look
// the account up, issue a code and hand a PendingLogin to the session layer.
type IdentifierService struct {
	Store    store.Store
	Limiter  ratelimit.Limiter
	Notifier Notifier
	Events   event.Sink

	Config IdentifierConfig
	Code   CodeConfig

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (s *IdentifierService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Begin handles one identifier submission from the given source IP. On
// success the returned PendingLogin must be stored in the caller's session.
func (s *IdentifierService) Begin(ctx context.Context, identifier, ip string) (domain.PendingLogin, error) {
	cfg := s.Config.withDefaults()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || (cfg.ValidateEmail && !validEmail(identifier)) {
		s.emit(ctx, event.KindInvalidIdentifierFormat, identifier, ip, nil)
		return domain.PendingLogin{}, ErrInvalidIdentifier
	}

	// The throttle key includes the source IP so one source probing many
	// identifiers trips its own counters, while a user on a new network is
	// not punished for someone else's probing.
	key := identifierThrottleKey(identifier, ip)

	if cfg.EnableThrottling {
		blocked, err := s.Limiter.TooManyAttempts(ctx, key, cfg.MaxAttempts)
		if err != nil {
			return domain.PendingLogin{}, fmt.Errorf("identifier phase: %w", err)
		}
		if blocked {
			return domain.PendingLogin{}, s.failRateLimited(ctx, key, identifier, ip)
		}
	}

	account, err := s.Store.Accounts().GetAccountByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if cfg.EnableThrottling {
				if _, err := s.Limiter.Hit(ctx, key); err != nil {
					return domain.PendingLogin{}, fmt.Errorf("identifier phase: %w", err)
				}
			}
			s.emit(ctx, event.KindUserNotFound, identifier, ip, nil)
			return domain.PendingLogin{}, ErrAuthenticationFailed
		}
		return domain.PendingLogin{}, fmt.Errorf("identifier phase: %w", err)
	}

	if err := s.Limiter.Clear(ctx, key); err != nil {
		return domain.PendingLogin{}, fmt.Errorf("identifier phase: %w", err)
	}

	code, err := issueCode(ctx, s.Store.Accounts(), s.Code.withDefaults(), s.now(), account.ID)
	if err != nil {
		return domain.PendingLogin{}, fmt.Errorf("identifier phase: %w", err)
	}

	s.notify(ctx, account, code, ip)

	s.emit(ctx, event.KindLoginRequestViaTotp, account.Identifier, ip, nil)

	return domain.PendingLogin{
		Identifier: account.Identifier,
		CreatedAt:  s.now(),
	}, nil
}

// failRateLimited distinguishes the first lockout of a window from continued
// probing and returns the user-facing throttle error.
func (s *IdentifierService) failRateLimited(ctx context.Context, key, identifier, ip string) error {
	retryIn, err := s.Limiter.AvailableIn(ctx, key)
	if err != nil {
		return fmt.Errorf("identifier phase: %w", err)
	}

	first, err := s.Limiter.MarkBlocked(ctx, key, retryIn)
	if err != nil {
		return fmt.Errorf("identifier phase: %w", err)
	}

	detail := map[string]string{"retry_in": strconv.Itoa(int(retryIn.Seconds()))}
	if first {
		s.emit(ctx, event.KindIdentifierRateLimitExceeded, identifier, ip, detail)
	} else {
		s.emit(ctx, event.KindIdentifierRateLimitContinued, identifier, ip, detail)
	}

	return &RateLimitError{RetryIn: retryIn}
}

func (s *IdentifierService) notify(ctx context.Context, account domain.Account, code, ip string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Send(ctx, account, code, ip); err != nil {
		// Delivery failure is not a phase failure.
		slogx.FromContext(ctx).Error("failed to send login code",
			"identifier", account.Identifier,
			"err", err,
		)
	}
}

func (s *IdentifierService) emit(ctx context.Context, kind event.Kind, identifier, ip string, detail map[string]string) {
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

// issueCode generates a fresh code, persists its hash and expiry, and
// returns the cleartext for delivery. Shared with the code phase's
// reissue-on-expiry path.
func issueCode(ctx context.Context, accounts store.Accounts, cfg CodeConfig, now time.Time, accountID string) (string, error) {
	code, err := cryptox.GenerateCode(cfg.Length)
	if err != nil {
		return "", err
	}

	hash, err := cryptox.HashCode(code)
	if err != nil {
		return "", err
	}

	if err := accounts.SetLoginCode(ctx, accountID, hash, now.Add(cfg.TTL)); err != nil {
		return "", err
	}
	return code, nil
}

func identifierThrottleKey(identifier, ip string) string {
	return strings.ToLower(identifier) + "|" + ip
}

func validEmail(identifier string) bool {
	addr, err := mail.ParseAddress(identifier)
	return err == nil && addr.Address == identifier
}
