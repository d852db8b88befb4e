package provenance

import "fmt"

// DocType discriminates source document formats.
type DocType string

const (
	DocTypePDF  DocType = "pdf"
	DocTypeDOCX DocType = "docx"
	DocTypePPTX DocType = "pptx"
	DocTypeXLSX DocType = "xlsx"
	DocTypeCSV  DocType = "csv"
	DocTypeTXT  DocType = "txt"
	DocTypeMD   DocType = "md"
	DocTypeHTML DocType = "html"
)

// Locator is an addressable position inside a source document. It is an
// immutable value object: only the fields meaningful for its Type are set,
// and a zero value in an int field means "not applicable" (real positions
// are 1-based).
type Locator struct {
	Type      DocType `json:"type"`
	Page      int     `json:"page,omitempty"`      // pdf
	Paragraph int     `json:"paragraph,omitempty"` // docx
	Slide     int     `json:"slide,omitempty"`     // pptx
	ShapeID   string  `json:"shape_id,omitempty"`  // pptx
	Sheet     string  `json:"sheet,omitempty"`     // xlsx
	Row       int     `json:"row,omitempty"`       // xlsx, csv
	Column    int     `json:"column,omitempty"`    // xlsx, csv
	Line      int     `json:"line,omitempty"`      // txt, md, html
}

// ToMap flattens the locator to a key-value form with only populated fields
// present. The inverse is LocatorFromMap.
func (l Locator) ToMap() map[string]any {
	m := map[string]any{"type": string(l.Type)}
	if l.Page != 0 {
		m["page"] = l.Page
	}
	if l.Paragraph != 0 {
		m["paragraph"] = l.Paragraph
	}
	if l.Slide != 0 {
		m["slide"] = l.Slide
	}
	if l.ShapeID != "" {
		m["shape_id"] = l.ShapeID
	}
	if l.Sheet != "" {
		m["sheet"] = l.Sheet
	}
	if l.Row != 0 {
		m["row"] = l.Row
	}
	if l.Column != 0 {
		m["column"] = l.Column
	}
	if l.Line != 0 {
		m["line"] = l.Line
	}
	return m
}

// LocatorFromMap rebuilds a Locator from its flat form.
func LocatorFromMap(m map[string]any) (Locator, error) {
	rawType, ok := m["type"]
	if !ok {
		return Locator{}, fmt.Errorf("locator map missing type")
	}
	typeStr, ok := rawType.(string)
	if !ok {
		return Locator{}, fmt.Errorf("locator type is not a string: %v", rawType)
	}

	l := Locator{Type: DocType(typeStr)}
	for key, value := range m {
		switch key {
		case "type":
		case "shape_id":
			if s, ok := value.(string); ok {
				l.ShapeID = s
			}
		case "sheet":
			if s, ok := value.(string); ok {
				l.Sheet = s
			}
		default:
			n, err := toInt(value)
			if err != nil {
				return Locator{}, fmt.Errorf("locator field %s: %w", key, err)
			}
			switch key {
			case "page":
				l.Page = n
			case "paragraph":
				l.Paragraph = n
			case "slide":
				l.Slide = n
			case "row":
				l.Row = n
			case "column":
				l.Column = n
			case "line":
				l.Line = n
			}
		}
	}
	return l, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		// JSON round trips land here.
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}
