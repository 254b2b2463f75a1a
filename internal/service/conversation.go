package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parley-labs/parley/internal/domain"
	"github.com/parley-labs/parley/internal/openai"
	"github.com/parley-labs/parley/internal/prompt"
	"github.com/parley-labs/parley/internal/session"
	"github.com/parley-labs/parley/internal/telemetry"
	"github.com/parley-labs/parley/internal/vectorstore"
)

// QueryEmbedder defines the interface for embedding a search query
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ContextSearcher defines the interface for retrieving tenant context
type ContextSearcher interface {
	Search(ctx context.Context, tenant domain.TenantKey, embedding []float32, k int) ([]vectorstore.Match, error)
}

// AnswerStreamer defines the interface for streamed answer generation
type AnswerStreamer interface {
	StreamChat(ctx context.Context, messages []openai.Message) (openai.TokenStream, error)
}

// TokenSink receives answer deltas as the model produces them. Returning
// an error aborts the turn.
type TokenSink func(delta string) error

// AskInput represents one question posed to a tenant's corpus
type AskInput struct {
	Tenant    domain.TenantKey
	SessionID string
	Question  string
	K         int
}

// AskOutput represents a fully generated answer
type AskOutput struct {
	SessionID string
	Answer    string
	Matches   []vectorstore.Match
	Created   bool
}

// ConversationServiceConfig controls conversation behavior.
type ConversationServiceConfig struct {
	TopK     int
	Template *prompt.Template
}

// DefaultConversationServiceConfig returns the default configuration.
func DefaultConversationServiceConfig() ConversationServiceConfig {
	return ConversationServiceConfig{
		TopK:     4,
		Template: prompt.Default(),
	}
}

// ConversationService answers questions over a tenant's corpus. Each
// turn retrieves context, composes a prompt with conversation history
// and streams the generated answer. Memory is updated only after the
// full answer has been produced.
type ConversationService struct {
	sessions *session.Manager
	embedder QueryEmbedder
	store    ContextSearcher
	chat     AnswerStreamer
	cfg      ConversationServiceConfig
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(
	sessions *session.Manager,
	embedder QueryEmbedder,
	store ContextSearcher,
	chat AnswerStreamer,
) *ConversationService {
	return NewConversationServiceWithConfig(sessions, embedder, store, chat, DefaultConversationServiceConfig())
}

// NewConversationServiceWithConfig creates a new ConversationService with explicit configuration.
func NewConversationServiceWithConfig(
	sessions *session.Manager,
	embedder QueryEmbedder,
	store ContextSearcher,
	chat AnswerStreamer,
	cfg ConversationServiceConfig,
) *ConversationService {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.Template == nil {
		cfg.Template = prompt.Default()
	}
	return &ConversationService{
		sessions: sessions,
		embedder: embedder,
		store:    store,
		chat:     chat,
		cfg:      cfg,
	}
}

// Ask runs one conversation turn. Deltas are pushed to sink as they
// arrive; the returned output carries the assembled answer. On error the
// session memory is left exactly as it was before the turn.
func (s *ConversationService) Ask(ctx context.Context, input AskInput, sink TokenSink) (*AskOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.Ask", telemetry.SpanAttributes{
		Tenant:    string(input.Tenant),
		SessionID: input.SessionID,
		Operation: "ask",
	})
	defer span.End()

	started := time.Now()

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.NewTurnError(domain.PhaseReceived, domain.ErrEmptyQuestion)
	}
	if sink == nil {
		sink = func(string) error { return nil }
	}

	sess, created := s.sessions.GetOrCreate(input.Tenant, input.SessionID)
	sess.LockTurn()
	defer sess.UnlockTurn()

	matches, err := s.retrieve(ctx, input.Tenant, question, input.K)
	if err != nil {
		failed := domain.NewTurnError(domain.PhaseRetrieving, err)
		span.SetError(failed)
		return nil, failed
	}

	composed := s.compose(sess, matches, question)

	answer, err := s.generate(ctx, composed, sink)
	if err != nil {
		failed := domain.NewTurnError(domain.PhaseGenerating, err)
		span.SetError(failed)
		return nil, failed
	}

	sess.RecordTurn(question, answer)

	log.Info().
		Str("tenant", string(input.Tenant)).
		Str("session_id", sess.ID).
		Int("context_chunks", len(matches)).
		Int("answer_chars", len(answer)).
		Dur("duration", time.Since(started)).
		Msg("turn completed")

	return &AskOutput{
		SessionID: sess.ID,
		Answer:    answer,
		Matches:   matches,
		Created:   created,
	}, nil
}

// retrieve embeds the question and searches the tenant's corpus. An
// empty corpus yields no matches and no error; actual failures abort
// the turn rather than silently answering without context.
func (s *ConversationService) retrieve(ctx context.Context, tenant domain.TenantKey, question string, k int) ([]vectorstore.Match, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}

	embedding, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "failed to embed question", err)
	}

	matches, err := s.store.Search(ctx, tenant, embedding, k)
	if err != nil {
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval, "context retrieval failed", err)
	}
	return matches, nil
}

func (s *ConversationService) compose(sess *session.Session, matches []vectorstore.Match, question string) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return s.cfg.Template.Render(
		prompt.FormatContext(texts),
		prompt.FormatHistory(sess.History()),
		question,
	)
}

func (s *ConversationService) generate(ctx context.Context, composed string, sink TokenSink) (string, error) {
	stream, err := s.chat.StreamChat(ctx, []openai.Message{
		{Role: openai.RoleUser, Content: composed},
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeGeneration, "failed to open answer stream", err)
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		delta, done, err := stream.Recv()
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeGeneration, "answer stream failed", err)
		}
		if delta != "" {
			answer.WriteString(delta)
			if err := sink(delta); err != nil {
				return "", fmt.Errorf("token delivery failed: %w", err)
			}
		}
		if done {
			return answer.String(), nil
		}
	}
}
