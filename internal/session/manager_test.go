package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-labs/parley/internal/domain"
)

const testWelcome = "Hi, what would you like to know about the uploaded documents?"

func TestManager_GetOrCreate_AssignsID(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	s, created := m.GetOrCreate(domain.TenantKey("acme"), "")
	require.True(t, created)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.TenantKey("acme"), s.Tenant)
	assert.Equal(t, 1, m.Count())
}

func TestManager_GetOrCreate_ReturnsExisting(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	first, created := m.GetOrCreate(domain.TenantKey("acme"), "chat-1")
	require.True(t, created)

	second, created := m.GetOrCreate(domain.TenantKey("acme"), "chat-1")
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestManager_SessionsAreTenantScoped(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	acme, _ := m.GetOrCreate(domain.TenantKey("acme"), "chat-1")
	globex, _ := m.GetOrCreate(domain.TenantKey("globex"), "chat-1")

	assert.NotSame(t, acme, globex)
	acme.RecordTurn("what is parley?", "a chat service")

	assert.Len(t, globex.History(), 0)
	assert.Equal(t, 2, m.Count())
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "chat-1")
	s.RecordTurn("q1", "a1")

	ok := m.Reset(domain.TenantKey("acme"), "chat-1")
	require.True(t, ok)

	assert.Empty(t, s.History())
	transcript := s.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, domain.RoleAssistant, transcript[0].Role)
	assert.Equal(t, testWelcome, transcript[0].Content)
}

func TestManager_Reset_UnknownSession(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	assert.False(t, m.Reset(domain.TenantKey("acme"), "nope"))
}

func TestManager_ResetTenant(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	acme1, _ := m.GetOrCreate(domain.TenantKey("acme"), "chat-1")
	acme2, _ := m.GetOrCreate(domain.TenantKey("acme"), "chat-2")
	globex, _ := m.GetOrCreate(domain.TenantKey("globex"), "chat-1")

	acme1.RecordTurn("q", "a")
	acme2.RecordTurn("q", "a")
	globex.RecordTurn("q", "a")

	reset := m.ResetTenant(domain.TenantKey("acme"))
	assert.Equal(t, 2, reset)
	assert.Empty(t, acme1.History())
	assert.Empty(t, acme2.History())
	assert.Len(t, globex.History(), 1)
}

func TestManager_Sweep(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	stale, _ := m.GetOrCreate(domain.TenantKey("acme"), "stale")
	fresh, _ := m.GetOrCreate(domain.TenantKey("acme"), "fresh")
	stale.Touch(time.Now().UTC().Add(-2 * time.Hour))
	fresh.Touch(time.Now().UTC())

	removed := m.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.Count())

	_, ok := m.Get(domain.TenantKey("acme"), "stale")
	assert.False(t, ok)
	_, ok = m.Get(domain.TenantKey("acme"), "fresh")
	assert.True(t, ok)
}

func TestManager_Sweep_DisabledTTL(t *testing.T) {
	m := NewManager(3, testWelcome, 0)

	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "chat-1")
	s.Touch(time.Now().UTC().Add(-240 * time.Hour))

	assert.Zero(t, m.Sweep())
	assert.Equal(t, 1, m.Count())
}

func TestSession_OpensWithWelcome(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "")
	transcript := s.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, domain.RoleAssistant, transcript[0].Role)
	assert.Equal(t, testWelcome, transcript[0].Content)
	assert.Empty(t, s.History())
}

func TestSession_NoWelcomeConfigured(t *testing.T) {
	m := NewManager(3, "", time.Hour)

	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "")
	assert.Empty(t, s.Transcript())
}

func TestSession_RecordTurn(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "")
	s.RecordTurn("what is parley?", "a chat service")

	transcript := s.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, domain.RoleUser, transcript[1].Role)
	assert.Equal(t, "what is parley?", transcript[1].Content)
	assert.Equal(t, domain.RoleAssistant, transcript[2].Role)
	assert.Equal(t, "a chat service", transcript[2].Content)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "what is parley?", history[0].Question)
	assert.Equal(t, "a chat service", history[0].Answer)
}

func TestSession_HistoryWindowEvictsButTranscriptKeepsAll(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)

	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "")
	for i := 1; i <= 5; i++ {
		s.RecordTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, "q3", history[0].Question)
	assert.Equal(t, "q5", history[2].Question)

	// welcome plus five user/assistant pairs
	assert.Len(t, s.Transcript(), 11)
}

func TestSession_LockTurnSerializes(t *testing.T) {
	m := NewManager(3, testWelcome, time.Hour)
	s, _ := m.GetOrCreate(domain.TenantKey("acme"), "")

	s.LockTurn()
	acquired := make(chan struct{})
	go func() {
		s.LockTurn()
		close(acquired)
		s.UnlockTurn()
	}()

	select {
	case <-acquired:
		t.Fatal("second turn acquired lock while first still held")
	case <-time.After(20 * time.Millisecond):
	}

	s.UnlockTurn()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second turn never acquired lock")
	}
}
