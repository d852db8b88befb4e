package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/docgraph/pipeline/internal/provenance"
)

// extractXLSX produces one span per non-empty cell, located by sheet name and
// 1-based row/column.
func extractXLSX(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var spans []provenance.Span
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		for rowIdx, row := range rows {
			for colIdx, cell := range row {
				text := strings.TrimSpace(cell)
				if text == "" {
					continue
				}
				spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
					Type:   provenance.DocTypeXLSX,
					Sheet:  sheet,
					Row:    rowIdx + 1,
					Column: colIdx + 1,
				}))
			}
		}
	}

	return spans, nil
}
