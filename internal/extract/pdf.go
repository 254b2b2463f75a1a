package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/parley-labs/parley/internal/domain"
)

// pdfText extracts text page by page so chunk source references can point
// at the page the text came from.
func pdfText(filename string, data []byte) ([]Section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "failed to read pdf", err)
	}

	var sections []Section
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
				"failed to extract pdf text", fmt.Errorf("page %d: %w", i, err))
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		sections = append(sections, Section{
			Text: pageText,
			Ref:  fmt.Sprintf("%s#page=%d", filename, i),
		})
	}
	return sections, nil
}
