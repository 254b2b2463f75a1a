package domain

import (
	"fmt"
	"time"
)

// Chunk represents a contiguous segment of an ingested document.
type Chunk struct {
	ID        string
	Text      string
	SourceRef string // document name, optionally with a page fragment
	Seq       int    // position within the source document, 0-based
}

// NewChunk creates a new Chunk instance
func NewChunk(id, text, sourceRef string, seq int) *Chunk {
	return &Chunk{
		ID:        id,
		Text:      text,
		SourceRef: sourceRef,
		Seq:       seq,
	}
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	if c.Seq < 0 {
		return fmt.Errorf("chunk Seq cannot be negative")
	}

	return nil
}

// EmbeddedChunk is a chunk paired with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
	CreatedAt time.Time
}

// ValidateEmbeddedChunk validates an EmbeddedChunk against the expected
// vector dimension.
func ValidateEmbeddedChunk(c *EmbeddedChunk, dimensions int) error {
	if c == nil {
		return fmt.Errorf("embedded chunk cannot be nil")
	}

	if err := ValidateChunk(&c.Chunk); err != nil {
		return err
	}

	if len(c.Embedding) == 0 {
		return fmt.Errorf("embedded chunk Embedding is required")
	}

	if len(c.Embedding) != dimensions {
		return ErrWrongDimensions
	}

	return nil
}
