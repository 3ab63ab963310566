package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/internal/login/store"
	"github.com/empuxa/totp-login/pkg/httpx"
	"github.com/empuxa/totp-login/pkg/jwtx"
	"github.com/empuxa/totp-login/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       *jwtx.Signer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	redis    *redis.Client
	sessions *session.Manager

	IdentifierService *service.IdentifierService
	CodeService       *service.CodeService

	// TokenTTL is the lifetime of the minted bearer token; RememberTTL
	// applies when the client asked to be remembered.
	TokenTTL    time.Duration
	RememberTTL time.Duration

	// Redirect is where successful logins are sent by the host application.
	Redirect string

	// SecureCookies marks the session cookie Secure. Enable everywhere TLS
	// terminates in front of the service.
	SecureCookies bool
}

func NewRouter(
	signer *jwtx.Signer,
	buildVersion string,
	st store.Store,
	rdb *redis.Client,
	sessions *session.Manager,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		redis:        rdb,
		sessions:     sessions,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	identifierHandler := &IdentifierHandler{
		Service:       r.IdentifierService,
		Sessions:      r.sessions,
		SecureCookies: r.SecureCookies,
	}

	// POST /login/identifier - strict rate limit (starts a login, sends mail)
	r.Mux.Handle("POST /v1/login/identifier",
		httpx.Chain(identifierHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	codeHandler := &CodeHandler{
		Service:       r.CodeService,
		Sessions:      r.sessions,
		Signer:        r.signer,
		TokenTTL:      r.TokenTTL,
		RememberTTL:   r.RememberTTL,
		Redirect:      r.Redirect,
		SecureCookies: r.SecureCookies,
	}

	// POST /login/code - strict rate limit (authentication attempts)
	r.Mux.Handle("POST /v1/login/code",
		httpx.Chain(codeHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.redis),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
