package provenance

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Span is the smallest addressable unit of extracted meaning. Spans are
// created once during normalization and never mutated; chunks reference them
// by id without owning them.
type Span struct {
	SpanID   string  `json:"span_id"`
	DocID    string  `json:"doc_id"`
	TenantID string  `json:"tenant_id"`
	Text     string  `json:"text"`
	Locator  Locator `json:"locator"`
}

// NewSpan builds a Span with a fresh id. Text must be non-empty after
// trimming; callers are expected to filter blank extractions before this.
func NewSpan(docID, tenantID, text string, loc Locator) Span {
	return Span{
		SpanID:   uuid.NewString(),
		DocID:    docID,
		TenantID: tenantID,
		Text:     strings.TrimSpace(text),
		Locator:  loc,
	}
}

// DocMeta is the per-document audit record written once after normalization.
type DocMeta struct {
	DocID        string    `json:"doc_id"`
	TenantID     string    `json:"tenant_id"`
	Filename     string    `json:"filename,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	BlobURI      string    `json:"blob_uri,omitempty"`
	SourceName   string    `json:"source,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	SpanCount    int       `json:"span_count"`
	EpisodeCount int       `json:"episode_count"`
	NormalizedAt time.Time `json:"normalized_at"`
}

// MiningAssertionRecord is a phase-1 subject-predicate-object statement whose
// entities are still document-local names.
type MiningAssertionRecord struct {
	SourceEntity   string `json:"source_entity"`
	Assertion      string `json:"assertion"`
	TerminalEntity string `json:"terminal_entity"`
	Source         string `json:"source,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
}

// ResolvedEntityRecord pairs a document-local entity name with its best match
// in the domain graph. The domain fields are absent when no confident match
// was found, which is a valid terminal state.
type ResolvedEntityRecord struct {
	Name             string  `json:"name"`
	DomainNodeID     *string `json:"domain_node_id,omitempty"`
	DomainEntityName *string `json:"domain_entity_name,omitempty"`
	DomainEntityType *string `json:"domain_entity_type,omitempty"`
}

// Resolved reports whether the record carries a domain match.
func (r ResolvedEntityRecord) Resolved() bool {
	return r.DomainNodeID != nil
}

// AssertionRecord is a phase-2 assertion whose endpoints carry resolution
// results.
type AssertionRecord struct {
	Source    ResolvedEntityRecord `json:"source_entity"`
	Assertion string               `json:"assertion"`
	Terminal  ResolvedEntityRecord `json:"terminal_entity"`
	SourceDoc string               `json:"source,omitempty"`
	SourceURL string               `json:"source_url,omitempty"`
}
