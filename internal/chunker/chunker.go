// Package chunker groups contiguous spans into bounded-size chunks for LLM
// context and graph ingestion.
package chunker

import (
	"fmt"
	"strings"

	"github.com/docgraph/pipeline/internal/provenance"
)

const spanSeparator = "\n\n"

// Config controls chunk assembly. Zero-value fields get defaults in Chunk.
type Config struct {
	MaxChars int // Maximum chunk text length; a single oversized span still becomes one chunk.
	Overlap  int // Characters of trailing text carried into the next chunk.
}

// Chunk greedily concatenates non-blank spans, blank-line separated, closing
// the in-progress chunk whenever adding the next span would exceed MaxChars.
// A span is never split: one whose text alone exceeds MaxChars becomes its
// own chunk. Deterministic: identical spans and config produce identical
// boundaries.
//
// When Overlap > 0, each chunk after the first is seeded with the previous
// chunk's trailing Overlap characters; the seed's provenance anchor is the
// previous chunk's last span only, an intentional approximation for context
// continuity rather than byte-exact lineage. A buffer holding nothing but
// that seed always admits its next span, so a seeded chunk may exceed
// MaxChars by up to Overlap plus the separator.
func Chunk(spans []provenance.Span, cfg Config) []provenance.Chunk {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 6000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}

	var chunks []provenance.Chunk
	var buf strings.Builder
	var spanIDs []string
	var locators []provenance.Locator
	seeded := false // buffer currently holds only overlap carry-over

	docID := ""

	closeChunk := func() {
		if buf.Len() == 0 || len(spanIDs) == 0 {
			return
		}
		text := buf.String()
		chunks = append(chunks, provenance.Chunk{
			ChunkID:  fmt.Sprintf("%s_chunk_%d", docID, len(chunks)),
			Text:     text,
			SpanIDs:  spanIDs,
			Locators: locators,
		})

		lastID := spanIDs[len(spanIDs)-1]
		lastLoc := locators[len(locators)-1]
		buf.Reset()
		spanIDs = nil
		locators = nil
		seeded = false

		if cfg.Overlap > 0 {
			tail := text
			if len(tail) > cfg.Overlap {
				tail = tail[len(tail)-cfg.Overlap:]
			}
			buf.WriteString(tail)
			spanIDs = []string{lastID}
			locators = []provenance.Locator{lastLoc}
			seeded = true
		}
	}

	for _, span := range spans {
		text := strings.TrimSpace(span.Text)
		if text == "" {
			continue
		}
		if docID == "" {
			docID = span.DocID
		}

		addition := len(text)
		if buf.Len() > 0 {
			addition += len(spanSeparator)
		}

		if buf.Len() > 0 && !onlySeed(seeded, spanIDs) && buf.Len()+addition > cfg.MaxChars {
			closeChunk()
		}

		if buf.Len() > 0 {
			buf.WriteString(spanSeparator)
		}
		buf.WriteString(text)
		spanIDs = append(spanIDs, span.SpanID)
		locators = append(locators, span.Locator)
		seeded = false
	}

	// Flush without reseeding overlap.
	if buf.Len() > 0 && len(spanIDs) > 0 {
		chunks = append(chunks, provenance.Chunk{
			ChunkID:  fmt.Sprintf("%s_chunk_%d", docID, len(chunks)),
			Text:     buf.String(),
			SpanIDs:  spanIDs,
			Locators: locators,
		})
	}

	return chunks
}

// onlySeed reports whether the buffer holds nothing but overlap carry-over,
// in which case the next span always joins it even past MaxChars.
func onlySeed(seeded bool, spanIDs []string) bool {
	return seeded && len(spanIDs) == 1
}
