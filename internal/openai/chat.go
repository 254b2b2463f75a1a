package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the model used for answer generation
const DefaultChatModel = openai.GPT3Dot5Turbo16K

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat completion message
type Message struct {
	Role    Role
	Content string
}

// TokenStream yields answer deltas as the model produces them. Recv returns
// done=true once the stream is exhausted.
type TokenStream interface {
	Recv() (delta string, done bool, err error)
	Close() error
}

// ChatAPI defines the interface for streamed chat completion
type ChatAPI interface {
	CreateChatStream(ctx context.Context, messages []Message) (TokenStream, error)
}

type ChatAdapter struct {
	client *openai.Client
	model  string
}

func NewChatAdapter(apiKey, model string) *ChatAdapter {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateChatStream opens a streaming chat completion.
func (a *ChatAdapter) CreateChatStream(ctx context.Context, messages []Message) (TokenStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
		Stream:   true,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, bool, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(resp.Choices) == 0 {
		return "", false, nil
	}
	return resp.Choices[0].Delta.Content, false, nil
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}

// StaticStream yields a fixed answer as a single delta. Used when a caller
// asked for a stream but the content already exists in full.
type StaticStream struct {
	content string
	sent    bool
}

func NewStaticStream(content string) *StaticStream {
	return &StaticStream{content: content}
}

func (s *StaticStream) Recv() (string, bool, error) {
	if s.sent {
		return "", true, nil
	}
	s.sent = true
	return s.content, false, nil
}

func (s *StaticStream) Close() error { return nil }

// ChatClient wraps a ChatAPI with retry on stream creation. A stream that
// fails mid-flight is not retried; partial answers must never be silently
// restarted.
type ChatClient struct {
	api        ChatAPI
	maxRetries int
	retryDelay time.Duration
}

type ChatConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

// NewChatClient creates a new chat client using defaults.
func NewChatClient(apiKey, model string) *ChatClient {
	return NewChatClientWithConfig(ChatConfig{APIKey: apiKey, Model: model})
}

// NewChatClientWithConfig creates a new chat client with explicit configuration.
func NewChatClientWithConfig(cfg ChatConfig) *ChatClient {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &ChatClient{
		api:        NewChatAdapter(cfg.APIKey, cfg.Model),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// NewChatClientWithAPI creates a ChatClient over a custom ChatAPI. Used by tests.
func NewChatClientWithAPI(api ChatAPI) *ChatClient {
	return &ChatClient{
		api:        api,
		maxRetries: defaultMaxRetries,
		retryDelay: time.Millisecond,
	}
}

// StreamChat opens a token stream for messages.
func (c *ChatClient) StreamChat(ctx context.Context, messages []Message) (TokenStream, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, c.retryDelay, attempt); err != nil {
				return nil, err
			}
		}

		stream, err := c.api.CreateChatStream(ctx, messages)
		if err != nil {
			lastErr = err
			continue
		}
		return stream, nil
	}
	return nil, fmt.Errorf("failed to open chat stream after %d attempts: %w", c.maxRetries+1, lastErr)
}
