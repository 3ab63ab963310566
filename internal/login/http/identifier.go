package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/empuxa/totp-login/internal/login/ratelimit"
	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/pkg/httpx"
	"github.com/empuxa/totp-login/pkg/loginsdk"
	"github.com/empuxa/totp-login/pkg/slogx"
)

// IdentifierHandler handles POST /v1/login/identifier, phase 1 of the flow.
type IdentifierHandler struct {
	Service  *service.IdentifierService
	Sessions *session.Manager

	SecureCookies bool
}

func (h *IdentifierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginsdk.IdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		loginsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ip := httpx.ClientIP(r)

	pending, err := h.Service.Begin(ctx, req.Identifier, ip)
	if err != nil {
		h.writeBeginError(w, log, err)
		return
	}
	pending.Remember = req.Remember

	// Reuse the caller's session when one exists, otherwise start one. A
	// repeated phase-1 request simply replaces the pending login.
	sess, ok := currentSession(r, h.Sessions)
	if !ok {
		sess = h.Sessions.Create()
	}
	if err := h.Sessions.PutPending(sess.ID, pending); err != nil {
		// The session raced its own expiry; start a fresh one.
		sess = h.Sessions.Create()
		if err := h.Sessions.PutPending(sess.ID, pending); err != nil {
			log.Error("failed to stage pending login", "err", err)
			loginsdk.ErrServerError.WriteError(w)
			return
		}
	}

	setSessionCookie(w, sess, h.SecureCookies)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentifierHandler) writeBeginError(w http.ResponseWriter, log *slog.Logger, err error) {
	var rle *service.RateLimitError

	switch {
	case errors.Is(err, service.ErrInvalidIdentifier):
		loginsdk.ErrInvalidIdentifier.WriteError(w)

	case errors.Is(err, service.ErrAuthenticationFailed):
		loginsdk.ErrAuthenticationFailed.WriteError(w)

	case errors.As(err, &rle):
		e := *loginsdk.ErrRateLimited
		e.RetryIn = int(rle.RetryIn.Seconds())
		e.WriteError(w)

	case errors.Is(err, ratelimit.ErrUnavailable):
		log.Error("rate limiter unavailable", "err", err)
		loginsdk.ErrNotReady.WriteError(w)

	default:
		log.Error("identifier phase failed", "err", err)
		loginsdk.ErrServerError.WriteError(w)
	}
}
