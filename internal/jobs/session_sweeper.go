package jobs

import (
	"context"

	"github.com/rs/zerolog/log"
)

// SessionStore is the subset of the session manager the sweeper needs.
type SessionStore interface {
	Sweep() int
}

// SessionSweeper evicts sessions idle past their TTL. Run it through a
// Worker so eviction happens on a fixed interval.
type SessionSweeper struct {
	sessions SessionStore
}

func NewSessionSweeper(sessions SessionStore) *SessionSweeper {
	return &SessionSweeper{sessions: sessions}
}

func (s *SessionSweeper) ProcessJobs(ctx context.Context) error {
	evicted := s.sessions.Sweep()
	if evicted > 0 {
		log.Info().Int("evicted", evicted).Msg("idle sessions swept")
	}
	return nil
}
