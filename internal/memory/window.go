// Package memory holds short-term conversation state. A window keeps
// only the most recent turns so prompts stay bounded regardless of how
// long a session runs.
package memory

import (
	"sync"

	"github.com/parley-labs/parley/internal/domain"
)

// DefaultCapacity is the number of turns carried into each prompt.
const DefaultCapacity = 3

// Window retains the last N question/answer turns of a conversation,
// evicting the oldest once capacity is reached. Safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	capacity int
	turns    []domain.Turn
}

// NewWindow creates a window holding up to capacity turns.
func NewWindow(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, domain.ErrWindowCapacity
	}
	return &Window{capacity: capacity}, nil
}

// Append records a completed turn, evicting the oldest if full.
func (w *Window) Append(turn domain.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.turns) == w.capacity {
		copy(w.turns, w.turns[1:])
		w.turns[len(w.turns)-1] = turn
		return
	}
	w.turns = append(w.turns, turn)
}

// Snapshot returns the retained turns, oldest first. The returned slice
// is a copy and stays valid after later appends.
func (w *Window) Snapshot() []domain.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]domain.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Clear discards all retained turns.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
}

// Len returns the number of retained turns.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.turns)
}

// Capacity returns the maximum number of retained turns.
func (w *Window) Capacity() int {
	return w.capacity
}
