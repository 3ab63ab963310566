package http_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/event"
	loginhttp "github.com/empuxa/totp-login/internal/login/http"
	"github.com/empuxa/totp-login/internal/login/ratelimit"
	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/session"
	"github.com/empuxa/totp-login/internal/login/store/drivers/sqlite"
	"github.com/empuxa/totp-login/pkg/idx"
	"github.com/empuxa/totp-login/pkg/jwtx"
	"github.com/empuxa/totp-login/pkg/loginsdk"
	"github.com/empuxa/totp-login/pkg/slogx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string // identifier -> latest code
}

func (m *mailbox) Send(_ context.Context, account domain.Account, code string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[strings.ToLower(account.Identifier)] = code
	return nil
}

func (m *mailbox) code(t *testing.T, identifier string) string {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[strings.ToLower(identifier)]
	require.True(t, ok, "no code delivered for %s", identifier)
	return code
}

type testServer struct {
	server *httptest.Server
	signer *jwtx.Signer
	mail   *mailbox
	store  *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := ratelimit.NewRedisLimiter(client)

	signer, err := jwtx.NewEphemeralSigner("totp-login-test")
	require.NoError(t, err)

	mail := &mailbox{}
	sessions := session.NewManager(session.DefaultTTL)
	logger := slogx.New(slogx.Config{Service: "totp-login", Env: "test", Level: "error"})

	codeCfg := service.CodeConfig{
		Length:               6,
		TTL:                  10 * time.Minute,
		MaxAttempts:          5,
		EnableThrottling:     true,
		DiscloseAttemptsLeft: true,
	}

	router := loginhttp.NewRouter(signer, "test", st, client, sessions, logger)
	router.IdentifierService = &service.IdentifierService{
		Store:    st,
		Limiter:  limiter,
		Notifier: mail,
		Events:   event.NoopSink{},
		Config:   service.IdentifierConfig{ValidateEmail: true, EnableThrottling: true},
		Code:     codeCfg,
	}
	router.CodeService = &service.CodeService{
		Store:    st,
		Limiter:  limiter,
		Notifier: mail,
		Events:   event.NoopSink{},
		Config:   codeCfg,
	}
	router.Redirect = "/dashboard"
	router.ApplyRoutes()

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &testServer{server: ts, signer: signer, mail: mail, store: st}
}

func (ts *testServer) seedAccount(t *testing.T, identifier string) domain.Account {
	t.Helper()

	a := domain.Account{ID: idx.New().String(), Identifier: identifier}
	require.NoError(t, ts.store.Accounts().CreateAccount(context.Background(), a))
	return a
}

func TestLoginFlowEndToEnd(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.seedAccount(t, "user@example.com")
	sdk := loginsdk.NewClient(ts.server.URL)
	ctx := context.Background()

	require.NoError(t, sdk.BeginLogin(ctx, "user@example.com", false))

	login, err := sdk.SubmitCodeString(ctx, ts.mail.code(t, "user@example.com"))
	require.NoError(t, err)
	require.Equal(t, "Bearer", login.TokenType)
	require.Equal(t, "/dashboard", login.Redirect)
	require.Positive(t, login.ExpiresIn)

	claims, err := ts.signer.Verify(login.Token)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.Subject)
	require.Contains(t, claims.AMR, jwtx.AMRTotp)
}

func TestLoginFlowRememberExtendsToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.seedAccount(t, "user@example.com")
	sdk := loginsdk.NewClient(ts.server.URL)
	ctx := context.Background()

	require.NoError(t, sdk.BeginLogin(ctx, "user@example.com", true))

	login, err := sdk.SubmitCodeString(ctx, ts.mail.code(t, "user@example.com"))
	require.NoError(t, err)
	require.Greater(t, login.ExpiresIn, int(time.Hour.Seconds()))
}

func TestCodeWithoutSessionIsRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	sdk := loginsdk.NewClient(ts.server.URL)

	_, err := sdk.SubmitCodeString(context.Background(), "123456")
	var apiErr *loginsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, loginsdk.ErrorCodeMissingSession, apiErr.Code)
	require.Equal(t, 409, apiErr.StatusCode)
}

func TestUnknownIdentifierFailsGenerically(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	sdk := loginsdk.NewClient(ts.server.URL)

	err := sdk.BeginLogin(context.Background(), "ghost@example.com", false)
	var apiErr *loginsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, loginsdk.ErrorCodeAuthenticationFailed, apiErr.Code)
	require.Equal(t, 401, apiErr.StatusCode)
}

func TestInvalidIdentifierRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	sdk := loginsdk.NewClient(ts.server.URL)

	err := sdk.BeginLogin(context.Background(), "not-an-email", false)
	var apiErr *loginsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, loginsdk.ErrorCodeInvalidIdentifier, apiErr.Code)
	require.Equal(t, 422, apiErr.StatusCode)
}

func TestIncorrectCodeDisclosesAttempts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.seedAccount(t, "user@example.com")
	sdk := loginsdk.NewClient(ts.server.URL)
	ctx := context.Background()

	require.NoError(t, sdk.BeginLogin(ctx, "user@example.com", false))

	_, err := sdk.SubmitCodeString(ctx, "000000")
	var apiErr *loginsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, loginsdk.ErrorCodeIncorrectCode, apiErr.Code)
	require.Equal(t, 401, apiErr.StatusCode)
	require.NotNil(t, apiErr.AttemptsLeft)
	require.Equal(t, 4, *apiErr.AttemptsLeft)

	// The correct code still completes the flow.
	login, err := sdk.SubmitCodeString(ctx, ts.mail.code(t, "user@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
}

func TestMalformedCodeRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.seedAccount(t, "user@example.com")
	sdk := loginsdk.NewClient(ts.server.URL)
	ctx := context.Background()

	require.NoError(t, sdk.BeginLogin(ctx, "user@example.com", false))

	_, err := sdk.SubmitCode(ctx, []string{"1", "2", "3"})
	var apiErr *loginsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, loginsdk.ErrorCodeInvalidRequest, apiErr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	sdk := loginsdk.NewClient(ts.server.URL)
	ctx := context.Background()

	live, err := sdk.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := sdk.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Cache)
}
