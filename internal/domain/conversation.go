package domain

import (
	"fmt"
	"time"
)

// MessageRole identifies the author of a transcript message
type MessageRole string

const (
	RoleAssistant MessageRole = "assistant"
	RoleUser      MessageRole = "user"
)

// Message is a single entry in a conversation transcript
type Message struct {
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// NewMessage creates a new Message instance
func NewMessage(role MessageRole, content string, createdAt time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		CreatedAt: createdAt,
	}
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	return nil
}

// isValidMessageRole checks if a MessageRole is valid
func isValidMessageRole(r MessageRole) bool {
	switch r {
	case RoleAssistant, RoleUser:
		return true
	}
	return false
}

// Turn is one completed question/answer exchange. Conversation memory holds
// whole turns only; a turn exists once generation has fully succeeded.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// NewTurn creates a new Turn instance
func NewTurn(question, answer string, at time.Time) Turn {
	return Turn{
		Question: question,
		Answer:   answer,
		At:       at,
	}
}

// TurnPhase tracks where a chat turn is in its lifecycle
type TurnPhase string

const (
	PhaseReceived   TurnPhase = "received"
	PhaseRetrieving TurnPhase = "retrieving"
	PhaseComposing  TurnPhase = "composing"
	PhaseGenerating TurnPhase = "generating"
	PhaseCompleted  TurnPhase = "completed"
	PhaseFailed     TurnPhase = "failed"
)

// TurnError reports a failed chat turn together with the phase that failed
type TurnError struct {
	Phase TurnPhase
	Err   error
}

// Error implements the error interface
func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed during %s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error
func (e *TurnError) Unwrap() error {
	return e.Err
}

// NewTurnError wraps err with the phase it occurred in
func NewTurnError(phase TurnPhase, err error) *TurnError {
	return &TurnError{Phase: phase, Err: err}
}
