// Package chunker splits extracted document text into overlapping chunks
// sized for embedding.
package chunker

import (
	"strings"
	"unicode"

	"github.com/parley-labs/parley/internal/domain"
)

// Config controls chunk sizing. Counts are runes, not bytes.
type Config struct {
	ChunkSize int
	Overlap   int
}

// DefaultConfig provides sane defaults for chunking.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 1500,
		Overlap:   200,
	}
}

// Splitter produces overlapping chunks from document text. Splitting is
// deterministic: the same input always yields the same chunks.
type Splitter struct {
	cfg Config
}

// New validates cfg and returns a Splitter. The overlap must be strictly
// smaller than the chunk size or every window would re-cover the previous
// one and splitting could not advance.
func New(cfg Config) (*Splitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, domain.ErrChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		return nil, domain.ErrChunkOverlap
	}
	return &Splitter{cfg: cfg}, nil
}

// Split chunks text into segments of at most ChunkSize runes, preferring to
// cut at a paragraph break, then a line break, then a sentence end, then any
// whitespace, falling back to a hard cut. Consecutive chunks share roughly
// Overlap runes. Whitespace-only input yields no chunks; input within
// ChunkSize yields a single chunk.
func (s *Splitter) Split(text, sourceRef string) []domain.Chunk {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	runes := []rune(clean)
	if len(runes) <= s.cfg.ChunkSize {
		return []domain.Chunk{{Text: clean, SourceRef: sourceRef, Seq: 0}}
	}

	chunks := make([]domain.Chunk, 0, len(runes)/s.cfg.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			end = s.cut(runes, start, end)
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, domain.Chunk{
				Text:      chunk,
				SourceRef: sourceRef,
				Seq:       len(chunks),
			})
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if s.cfg.Overlap > 0 && end-start > s.cfg.Overlap {
			nextStart = end - s.cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// cut scans backward from end for the best boundary, never cutting before
// minCut so a boundary-rich window still yields a reasonably full chunk.
func (s *Splitter) cut(runes []rune, start, end int) int {
	minCut := start + s.cfg.ChunkSize*2/3
	if minCut >= end {
		return end
	}

	var paragraph, line, sentence, space int
	for i := end; i > minCut; i-- {
		prev := runes[i-1]
		switch {
		case prev == '\n':
			if i >= 2 && runes[i-2] == '\n' {
				if paragraph == 0 {
					paragraph = i
				}
			}
			if line == 0 {
				line = i
			}
		case prev == '.' || prev == '!' || prev == '?':
			if sentence == 0 && i < len(runes) && unicode.IsSpace(runes[i]) {
				sentence = i
			}
		case unicode.IsSpace(prev):
			if space == 0 {
				space = i
			}
		}
	}

	switch {
	case paragraph > 0:
		return paragraph
	case line > 0:
		return line
	case sentence > 0:
		return sentence
	case space > 0:
		return space
	}
	return end
}
