package normalize

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/docgraph/pipeline/internal/provenance"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// extractHTML produces one span per block-level text element after stripping
// chrome elements. The Line field carries the 1-based block index since HTML
// has no stable source-line addressing after rendering.
func extractHTML(raw []byte, docID, tenantID string) ([]provenance.Span, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	var spans []provenance.Span
	emit := func(text string) {
		text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
		if text == "" {
			return
		}
		spans = append(spans, provenance.NewSpan(docID, tenantID, text, provenance.Locator{
			Type: provenance.DocTypeHTML,
			Line: len(spans) + 1,
		}))
	}

	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		emit(s.Text())
	})

	// Pages built entirely from divs still yield their body text as one span.
	if len(spans) == 0 {
		emit(doc.Find("body").Text())
	}

	return spans, nil
}
