// Package prompt renders the model prompt from retrieved context,
// conversation history and the user's question.
package prompt

import (
	"fmt"
	"strings"

	"github.com/parley-labs/parley/internal/domain"
)

// Placeholder fields recognized in a template.
const (
	FieldContext  = "context"
	FieldHistory  = "history"
	FieldQuestion = "question"
)

// DefaultText is the prompt used unless an operator overrides it.
const DefaultText = `You are a helpful AI assistant tasked to answer the user's questions.
You are friendly and you answer extensively with multiple sentences. You prefer to use bulletpoints to summarize.
If you do not know the answer, just say 'I do not know the answer'.

Use the following context to answer the question:
{context}

Use the previous chat history to answer the question:
{history}

Question:
{question}

Answer in the user's language:`

type segment struct {
	literal string
	field   string
}

// Template is a parsed prompt template. Substitution happens in a
// single pass over the parsed form, so placeholder-like text inside
// retrieved documents or questions is never expanded.
type Template struct {
	segments []segment
}

// New parses a template. Every {name} must be one of the known fields
// and {question} must appear at least once.
func New(text string) (*Template, error) {
	var segments []segment
	hasQuestion := false

	rest := text
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}

		name := rest[open+1 : open+end]
		switch name {
		case FieldContext, FieldHistory, FieldQuestion:
		default:
			return nil, domain.NewDomainError(domain.ErrCodeConfiguration,
				fmt.Sprintf("unknown prompt placeholder {%s}", name))
		}

		if open > 0 {
			segments = append(segments, segment{literal: rest[:open]})
		}
		segments = append(segments, segment{field: name})
		if name == FieldQuestion {
			hasQuestion = true
		}
		rest = rest[open+end+1:]
	}
	if rest != "" {
		segments = append(segments, segment{literal: rest})
	}

	if !hasQuestion {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration,
			"prompt template must contain {question}")
	}

	return &Template{segments: segments}, nil
}

// Must parses a template and panics on error. For templates known at
// compile time.
func Must(text string) *Template {
	t, err := New(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the built-in template.
func Default() *Template {
	return Must(DefaultText)
}

// Render substitutes the three fields into the template.
func (t *Template) Render(context, history, question string) string {
	var b strings.Builder
	for _, seg := range t.segments {
		switch seg.field {
		case FieldContext:
			b.WriteString(context)
		case FieldHistory:
			b.WriteString(history)
		case FieldQuestion:
			b.WriteString(question)
		default:
			b.WriteString(seg.literal)
		}
	}
	return b.String()
}

// FormatContext joins retrieved chunk texts into the context block,
// separated by blank lines.
func FormatContext(texts []string) string {
	return strings.Join(texts, "\n\n")
}

// FormatHistory renders past turns as alternating speaker lines.
func FormatHistory(turns []domain.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Human: ")
		b.WriteString(turn.Question)
		b.WriteString("\nAI: ")
		b.WriteString(turn.Answer)
	}
	return b.String()
}
