package normalize

import (
	"strings"

	"github.com/docgraph/pipeline/internal/provenance"
)

// extractText handles TXT and Markdown. Paragraphs split on blank-line
// boundaries; a document with no blank lines falls back to one span per
// line. The locator records the 1-based line on which each unit starts.
func extractText(docType provenance.DocType) extractor {
	return func(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
		content := strings.ReplaceAll(string(raw), "\r\n", "\n")
		lines := strings.Split(content, "\n")

		hasBlank := false
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				hasBlank = true
				break
			}
		}

		var spans []provenance.Span
		emit := func(text string, startLine int) {
			text = strings.TrimSpace(text)
			if text == "" {
				return
			}
			spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
				Type: docType,
				Line: startLine,
			}))
		}

		if !hasBlank {
			for i, line := range lines {
				emit(line, i+1)
			}
			return spans, nil
		}

		var para strings.Builder
		paraStart := 0
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				emit(para.String(), paraStart+1)
				para.Reset()
				continue
			}
			if para.Len() == 0 {
				paraStart = i
			} else {
				para.WriteString("\n")
			}
			para.WriteString(line)
		}
		emit(para.String(), paraStart+1)

		return spans, nil
	}
}
