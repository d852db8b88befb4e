package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/docgraph/pipeline/internal/provenance"
)

// extractDOCX produces one span per paragraph with non-empty text, walking
// word/document.xml with a streaming decoder (w:p elements containing w:t
// runs).
func extractDOCX(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
	r, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}

	data, err := readZipFile(r, "word/document.xml")
	if err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(bytes.NewReader(data))

	var spans []provenance.Span
	var para strings.Builder
	inParagraph := false
	paraIndex := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing DOCX XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				para.Reset()
			case "t":
				if inParagraph {
					var text string
					if err := decoder.DecodeElement(&text, &t); err == nil {
						para.WriteString(text)
					}
				}
			case "br", "cr":
				if inParagraph {
					para.WriteString("\n")
				}
			case "tab":
				if inParagraph {
					para.WriteString("\t")
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				paraIndex++
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
					Type:      provenance.DocTypeDOCX,
					Paragraph: paraIndex,
				}))
			}
		}
	}

	return spans, nil
}

var slideNumPattern = regexp.MustCompile(`slide(\d+)\.xml$`)

// extractPPTX produces one span per shape-with-text per slide. The shape id
// comes from the p:cNvPr element that precedes the shape's text body.
func extractPPTX(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
	r, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}

	slideFiles := make(map[int]*zip.File)
	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		m := slideNumPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slideFiles[num] = f
	}

	nums := make([]int, 0, len(slideFiles))
	for n := range slideFiles {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var spans []provenance.Span
	for _, num := range nums {
		rc, err := slideFiles[num].Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		slideSpans, err := extractSlideShapes(data, num, docID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("parsing slide %d: %w", num, err)
		}
		spans = append(spans, slideSpans...)
	}

	return spans, nil
}

func extractSlideShapes(slideXML []byte, slideNum int, docID, tenantID string) ([]provenance.Span, error) {
	decoder := xml.NewDecoder(bytes.NewReader(slideXML))

	var spans []provenance.Span
	var shape strings.Builder
	shapeID := ""
	shapeDepth := 0

	flush := func() {
		text := strings.TrimSpace(shape.String())
		if text != "" {
			spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
				Type:    provenance.DocTypePPTX,
				Slide:   slideNum,
				ShapeID: shapeID,
			}))
		}
		shape.Reset()
		shapeID = ""
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				shapeDepth++
			case "cNvPr":
				if shapeDepth > 0 && shapeID == "" {
					for _, attr := range t.Attr {
						if attr.Name.Local == "id" {
							shapeID = attr.Value
						}
					}
				}
			case "t":
				if shapeDepth > 0 {
					var text string
					if err := decoder.DecodeElement(&text, &t); err == nil {
						if shape.Len() > 0 {
							shape.WriteString("\n")
						}
						shape.WriteString(text)
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "sp" {
				shapeDepth--
				if shapeDepth == 0 {
					flush()
				}
			}
		}
	}

	return spans, nil
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
