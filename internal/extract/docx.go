package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/parley-labs/parley/internal/domain"
)

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxTag          = regexp.MustCompile(`<[^>]+>`)
)

func docxText(filename string, data []byte) ([]Section, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "failed to read docx", err)
	}
	defer r.Close()

	// GetContent returns the raw document XML; turn paragraph ends into
	// newlines and strip the remaining markup.
	content := r.Editable().GetContent()
	content = docxParagraphEnd.ReplaceAllString(content, "\n")
	content = docxTag.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	return []Section{{Text: content, Ref: filename}}, nil
}
