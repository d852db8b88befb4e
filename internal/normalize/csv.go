package normalize

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/docgraph/pipeline/internal/provenance"
)

// extractCSV produces one span per non-empty cell with 1-based row/column
// locators. Rows may have ragged lengths.
func extractCSV(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	var spans []provenance.Span
	for rowIdx, record := range records {
		for colIdx, cell := range record {
			text := strings.TrimSpace(cell)
			if text == "" {
				continue
			}
			spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
				Type:   provenance.DocTypeCSV,
				Row:    rowIdx + 1,
				Column: colIdx + 1,
			}))
		}
	}

	return spans, nil
}
