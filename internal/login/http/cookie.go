package http

import (
	"net/http"

	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/pkg/idx"
)

// SessionCookieName carries the login session ID between the two phases.
const SessionCookieName = "login_session"

// currentSession resolves the request's login session, if any.
func currentSession(r *http.Request, sessions *session.Manager) (session.Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return session.Session{}, false
	}

	id, err := idx.Parse(cookie.Value)
	if err != nil {
		return session.Session{}, false
	}

	s, err := sessions.Get(id)
	if err != nil {
		return session.Session{}, false
	}
	return s, true
}

// setSessionCookie installs the session ID on the response. The cookie is
// host-only, HTTP-only and Lax so the code phase request carries it while
// cross-site requests do not. secure should be true everywhere TLS
// terminates in front of the service.
func setSessionCookie(w http.ResponseWriter, s session.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.ID.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// clearSessionCookie expires the cookie after the flow completes.
func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}
