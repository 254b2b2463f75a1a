// Package extract turns uploaded document bytes into plain text sections
// ready for chunking.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/parley-labs/parley/internal/domain"
)

// Section is extracted text with the source reference it came from. Paged
// formats yield one section per page with a page fragment in Ref.
type Section struct {
	Text string
	Ref  string
}

// Document extracts plain text from data based on the filename extension.
// Supported: .txt, .md, .pdf, .docx.
func Document(filename string, data []byte) ([]Section, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return plainText(filename, data)
	case ".pdf":
		return pdfText(filename, data)
	case ".docx":
		return docxText(filename, data)
	default:
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			"unsupported document type", fmt.Errorf("extension %q", ext))
	}
}

// Supported reports whether Document can handle the filename.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".pdf", ".docx":
		return true
	}
	return false
}

func plainText(filename string, data []byte) ([]Section, error) {
	if !utf8.Valid(data) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "text file is not valid UTF-8")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Section{{Text: text, Ref: filename}}, nil
}
