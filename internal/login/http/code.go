package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/ratelimit"
	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/internal/login/store"
	"github.com/empuxa/totp-login/pkg/httpx"
	"github.com/empuxa/totp-login/pkg/jwtx"
	"github.com/empuxa/totp-login/pkg/loginsdk"
	"github.com/empuxa/totp-login/pkg/slogx"
)

// Default token lifetimes when the router does not configure them.
const (
	defaultTokenTTL    = time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour
)

// CodeHandler handles POST /v1/login/code, phase 2 of the flow.
type CodeHandler struct {
	Service  *service.CodeService
	Sessions *session.Manager
	Signer   *jwtx.Signer

	TokenTTL    time.Duration
	RememberTTL time.Duration
	Redirect    string

	SecureCookies bool
}

func (h *CodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginsdk.CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// A request without a usable session still runs through the service so
	// the failure is recorded like any other.
	var pending *domain.PendingLogin
	sess, hasSession := currentSession(r, h.Sessions)
	if hasSession && sess.Pending != nil {
		pending = sess.Pending
	}

	account, err := h.Service.Complete(ctx, pending, req.Code, httpx.ClientIP(r))
	if err != nil {
		h.writeCompleteError(w, log, err)
		return
	}

	// The login session's job is done. Rotate its ID before answering so
	// the pre-authentication cookie value stops resolving.
	sessionID := sess.ID
	if hasSession {
		rotated, err := h.Sessions.Regenerate(sess.ID)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			log.Warn("failed to rotate login session", "err", err)
		}
		if err == nil {
			sessionID = rotated.ID
		}
	}
	clearSessionCookie(w, h.SecureCookies)

	ttl := h.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if pending != nil && pending.Remember {
		ttl = h.RememberTTL
		if ttl <= 0 {
			ttl = defaultRememberTTL
		}
	}

	token, err := h.Signer.Mint(account.Identifier, sessionID.String(), ttl)
	if err != nil {
		log.Error("failed to mint token", "err", err)
		loginsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, loginsdk.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(ttl.Seconds()),
		Redirect:  h.Redirect,
	})
}

func (h *CodeHandler) writeCompleteError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		rle       *service.RateLimitError
		incorrect *service.IncorrectCodeError
	)

	switch {
	case errors.Is(err, service.ErrMissingSession):
		loginsdk.ErrMissingSession.WriteError(w)

	case errors.Is(err, service.ErrMissingCode), errors.Is(err, service.ErrInvalidCodeFormat):
		loginsdk.ErrInvalidRequest.WriteError(w)

	case errors.Is(err, service.ErrCodeExpired):
		loginsdk.ErrCodeExpired.WriteError(w)

	case errors.As(err, &incorrect):
		e := *loginsdk.ErrIncorrectCode
		e.AttemptsLeft = incorrect.AttemptsLeft
		e.WriteError(w)

	case errors.As(err, &rle):
		e := *loginsdk.ErrRateLimited
		e.RetryIn = int(rle.RetryIn.Seconds())
		e.WriteError(w)

	case errors.Is(err, store.ErrLockTimeout), errors.Is(err, ratelimit.ErrUnavailable):
		log.Error("code phase dependency unavailable", "err", err)
		loginsdk.ErrNotReady.WriteError(w)

	default:
		log.Error("code phase failed", "err", err)
		loginsdk.ErrServerError.WriteError(w)
	}
}
