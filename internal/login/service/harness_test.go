package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/internal/login/event"
	"github.com/empuxa/totp-login/internal/login/ratelimit"
	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/store"
	"github.com/empuxa/totp-login/internal/login/store/drivers/sqlite"
	"github.com/empuxa/totp-login/pkg/cryptox"
	"github.com/empuxa/totp-login/pkg/idx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fixture wires real infrastructure: an in-memory sqlite store and a
// miniredis-backed limiter, plus recording doubles for delivery and events.
type fixture struct {
	store    *sqlite.Store
	limiter  *ratelimit.RedisLimiter
	redis    *miniredis.Miniredis
	notifier *captureNotifier
	events   *recordSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &fixture{
		store:    st,
		limiter:  ratelimit.NewRedisLimiter(client),
		redis:    mr,
		notifier: &captureNotifier{},
		events:   &recordSink{},
	}
}

func (f *fixture) seedAccount(t *testing.T, identifier string) domain.Account {
	t.Helper()

	a := domain.Account{ID: idx.New().String(), Identifier: identifier}
	require.NoError(t, f.store.Accounts().CreateAccount(context.Background(), a))
	return a
}

// seedCode stores a known cleartext code on the account, valid until the
// given time, and returns the cleartext.
func (f *fixture) seedCode(t *testing.T, accountID, code string, validUntil time.Time) string {
	t.Helper()

	hash, err := cryptox.HashCode(code)
	require.NoError(t, err)
	require.NoError(t, f.store.Accounts().SetLoginCode(context.Background(), accountID, hash, validUntil))
	return code
}

func (f *fixture) identifierService(cfg service.IdentifierConfig, code service.CodeConfig) *service.IdentifierService {
	return &service.IdentifierService{
		Store:    f.store,
		Limiter:  f.limiter,
		Notifier: f.notifier,
		Events:   f.events,
		Config:   cfg,
		Code:     code,
	}
}

func (f *fixture) codeService(cfg service.CodeConfig) *service.CodeService {
	return &service.CodeService{
		Store:    f.store,
		Limiter:  f.limiter,
		Notifier: f.notifier,
		Events:   f.events,
		Config:   cfg,
	}
}

func pendingFor(identifier string) *domain.PendingLogin {
	return &domain.PendingLogin{Identifier: identifier, CreatedAt: time.Now()}
}

// digits splits a cleartext code into the per-digit form the handler posts.
func digits(code string) []string {
	return strings.Split(code, "")
}

type sentCode struct {
	Account domain.Account
	Code    string
	IP      string
}

type captureNotifier struct {
	mu    sync.Mutex
	sends []sentCode
}

func (n *captureNotifier) Send(_ context.Context, account domain.Account, code string, sourceIP string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, sentCode{Account: account, Code: code, IP: sourceIP})
	return nil
}

func (n *captureNotifier) last(t *testing.T) sentCode {
	t.Helper()

	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sends)
	return n.sends[len(n.sends)-1]
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

type recordSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordSink) Emit(_ context.Context, e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordSink) kinds() []event.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Kind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func (s *recordSink) lastKind(t *testing.T) event.Kind {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.events)
	return s.events[len(s.events)-1].Kind
}

// mustAccount reloads the account row.
func (f *fixture) mustAccount(t *testing.T, identifier string) domain.Account {
	t.Helper()

	a, err := f.store.Accounts().GetAccountByIdentifier(context.Background(), identifier)
	require.NoError(t, err)
	return a
}

var _ store.Store = (*sqlite.Store)(nil)
