package provenance

// Chunk is an LLM-context-sized grouping of one or more contiguous spans.
// SpanIDs and Locators are parallel, ordered lists: entry i of each refers to
// the same member span.
type Chunk struct {
	ChunkID  string    `json:"chunk_id"`
	Text     string    `json:"text"`
	SpanIDs  []string  `json:"span_ids"`
	Locators []Locator `json:"locators"`
}

// PrimarySpanID returns the first member span's id, the canonical provenance
// anchor when a consumer needs exactly one per chunk.
func (c Chunk) PrimarySpanID() string {
	if len(c.SpanIDs) == 0 {
		return ""
	}
	return c.SpanIDs[0]
}

// PrimaryLocator returns the first member span's locator.
func (c Chunk) PrimaryLocator() Locator {
	if len(c.Locators) == 0 {
		return Locator{}
	}
	return c.Locators[0]
}
