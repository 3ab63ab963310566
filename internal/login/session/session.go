// Package session keeps the short-lived per-client state bridging the two
// login phases. Each session carries at most one PendingLogin; the code
// itself is never stored here.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/empuxa/totp-login/internal/login/domain"
	"github.com/empuxa/totp-login/pkg/idx"
)

// DefaultTTL bounds how long a client can sit between phase 1 and phase 2.
const DefaultTTL = 15 * time.Minute

var ErrNotFound = errors.New("session: not found")

type Session struct {
	ID        idx.ID
	Pending   *domain.PendingLogin
	ExpiresAt time.Time
}

// Manager owns all sessions for this process. Sessions are scoped per
// client, so a plain mutex around the map is enough; the lock also makes
// Regenerate atomic, so there is no instant where both the old and the new
// identifier resolve.
type Manager struct {
	mu       sync.Mutex
	sessions map[idx.ID]*Session

	ttl time.Duration

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[idx.ID]*Session),
		ttl:      ttl,
		Now:      time.Now,
	}
}

// Create starts a fresh anonymous session.
func (m *Manager) Create() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:        idx.New(),
		ExpiresAt: m.Now().Add(m.ttl),
	}
	m.sessions[s.ID] = s
	return *s
}

// Get resolves a session by ID. Expired sessions resolve as not found.
func (m *Manager) Get(id idx.ID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || m.Now().After(s.ExpiresAt) {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// PutPending stores the phase-1 result on the session.
func (m *Manager) PutPending(id idx.ID, pending domain.PendingLogin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || m.Now().After(s.ExpiresAt) {
		return ErrNotFound
	}
	s.Pending = &pending
	s.ExpiresAt = m.Now().Add(m.ttl)
	return nil
}

// Regenerate replaces the session's identity with a fresh one, dropping the
// pending state. Called after a successful code phase so a fixated pre-login
// session ID is worthless.
func (m *Manager) Regenerate(id idx.ID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.sessions[id]
	if !ok || m.Now().After(old.ExpiresAt) {
		return Session{}, ErrNotFound
	}

	delete(m.sessions, id)
	fresh := &Session{
		ID:        idx.New(),
		ExpiresAt: m.Now().Add(m.ttl),
	}
	m.sessions[fresh.ID] = fresh
	return *fresh, nil
}

// Destroy removes a session outright.
func (m *Manager) Destroy(id idx.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// PurgeExpired removes lapsed sessions and returns how many were dropped.
func (m *Manager) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	purged := 0
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged
}

// Len reports the number of live sessions. Used by housekeeping logs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
