// Package artifacts persists the pipeline's write-once JSON artifacts and
// working-memory notes, keyed by (tenant_id, doc_id). Re-running a document
// replaces its artifacts wholesale; nothing is merged in place.
package artifacts

import "context"

// Kind names the artifact slots a document run produces.
type Kind string

const (
	KindSpans      Kind = "spans"
	KindMeta       Kind = "meta"
	KindAssertions Kind = "assertions"
	KindResolved   Kind = "resolved"
)

// Store is the artifact persistence contract. A missing read target is a
// normal not-found (false, nil), not an error.
type Store interface {
	PutArtifact(ctx context.Context, tenantID, docID string, kind Kind, value any) error
	GetArtifact(ctx context.Context, tenantID, docID string, kind Kind, out any) (bool, error)
	PutNote(ctx context.Context, tenantID, docID, key string, data []byte) error
	GetNote(ctx context.Context, tenantID, docID, key string) ([]byte, bool, error)
	Close() error
}
