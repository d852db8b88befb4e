package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docgraph/pipeline/internal/provenance"
)

// extractPDF produces one span per page with non-empty extracted text. Pages
// whose text extraction fails are skipped rather than failing the document.
func extractPDF(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	var spans []provenance.Span
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
			Type: provenance.DocTypePDF,
			Page: i,
		}))
	}

	return spans, nil
}
