// Package session tracks in-process chat sessions. A session couples a
// conversation memory window with the full transcript shown to clients.
package session

import (
	"sync"
	"time"

	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/memory"
)

// Session is one tenant-scoped conversation. The memory window feeds
// prompts while the transcript records everything said, including the
// welcome message.
type Session struct {
	ID     string
	Tenant domain.TenantKey

	// turnMu serializes question handling so concurrent asks on one
	// session cannot interleave memory updates.
	turnMu sync.Mutex

	mu         sync.Mutex
	window     *memory.Window
	welcome    string
	transcript []domain.Message
	lastSeen   time.Time
	createdAt  time.Time
}

func newSession(id string, tenant domain.TenantKey, window *memory.Window, welcome string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		Tenant:    tenant,
		window:    window,
		welcome:   welcome,
		lastSeen:  now,
		createdAt: now,
	}
	s.transcript = s.openingTranscript()
	return s
}

func (s *Session) openingTranscript() []domain.Message {
	if s.welcome == "" {
		return nil
	}
	return []domain.Message{domain.NewMessage(domain.RoleAssistant, s.welcome, time.Now().UTC())}
}

// LockTurn claims the session for one question/answer exchange.
func (s *Session) LockTurn() {
	s.turnMu.Lock()
}

// UnlockTurn releases the session after an exchange.
func (s *Session) UnlockTurn() {
	s.turnMu.Unlock()
}

// History returns the turns available for prompt composition, oldest
// first.
func (s *Session) History() []domain.Turn {
	return s.window.Snapshot()
}

// Transcript returns a copy of every message in the session, oldest
// first.
func (s *Session) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// RecordTurn commits a completed exchange to both the memory window and
// the transcript. Failed turns are never recorded.
func (s *Session) RecordTurn(question, answer string) {
	now := time.Now().UTC()
	s.window.Append(domain.NewTurn(question, answer, now))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript,
		domain.NewMessage(domain.RoleUser, question, now),
		domain.NewMessage(domain.RoleAssistant, answer, now),
	)
	s.lastSeen = now
}

// Reset discards the conversation memory and restores the transcript to
// its opening state.
func (s *Session) Reset() {
	s.window.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = s.openingTranscript()
	s.lastSeen = time.Now().UTC()
}

// Touch marks the session as active at the given time.
func (s *Session) Touch(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = at
}

// LastSeen reports when the session last handled activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// CreatedAt reports when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}
