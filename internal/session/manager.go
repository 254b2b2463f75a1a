package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/memory"
)

// Manager owns all live sessions, keyed by tenant and session id so one
// tenant can never reach another tenant's conversation.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	memoryTurns int
	welcome     string
	ttl         time.Duration
}

// NewManager creates a session manager. Sessions idle longer than ttl
// are removed by Sweep; a non-positive ttl disables expiry.
func NewManager(memoryTurns int, welcome string, ttl time.Duration) *Manager {
	if memoryTurns <= 0 {
		memoryTurns = memory.DefaultCapacity
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		memoryTurns: memoryTurns,
		welcome:     welcome,
		ttl:         ttl,
	}
}

func sessionKey(tenant domain.TenantKey, id string) string {
	return string(tenant) + "/" + id
}

// GetOrCreate returns the tenant's session with the given id, creating
// it on first use. An empty id asks for a fresh server-assigned session.
// The second return reports whether the session was created.
func (m *Manager) GetOrCreate(tenant domain.TenantKey, id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	} else if s, ok := m.sessions[sessionKey(tenant, id)]; ok {
		s.Touch(time.Now().UTC())
		return s, false
	}

	window, err := memory.NewWindow(m.memoryTurns)
	if err != nil {
		// constructor guarantees memoryTurns > 0
		panic(err)
	}
	s := newSession(id, tenant, window, m.welcome)
	m.sessions[sessionKey(tenant, id)] = s
	return s, true
}

// Get returns the tenant's session with the given id if it exists.
func (m *Manager) Get(tenant domain.TenantKey, id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionKey(tenant, id)]
	return s, ok
}

// Reset clears the session's memory and transcript. Resetting an
// unknown session is a no-op; the next question simply starts fresh.
func (m *Manager) Reset(tenant domain.TenantKey, id string) bool {
	s, ok := m.Get(tenant, id)
	if !ok {
		return false
	}
	s.Reset()
	return true
}

// ResetTenant resets every live session belonging to the tenant. Used
// when a tenant clears its context so stale history cannot leak into
// answers over the wiped corpus.
func (m *Manager) ResetTenant(tenant domain.TenantKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	reset := 0
	for _, s := range m.sessions {
		if s.Tenant == tenant {
			s.Reset()
			reset++
		}
	}
	return reset
}

// Sweep removes sessions idle longer than the configured ttl and
// returns how many were dropped.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-m.ttl)
	removed := 0
	for key, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
