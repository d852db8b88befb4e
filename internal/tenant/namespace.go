// Package tenant holds the pure naming functions that scope graph writes and
// reads. Every component that touches the graph derives its namespace strings
// from here so the ingestor and both query gateways can never drift apart.
package tenant

import (
	"fmt"
	"strings"
)

const groupPrefix = "tenant_"

// GroupID derives the graph namespace for a tenant. It is idempotent:
// GroupID(GroupID(x)) == GroupID(x).
func GroupID(tenantID string) string {
	if strings.HasPrefix(tenantID, groupPrefix) {
		return tenantID
	}
	return groupPrefix + tenantID
}

// EpisodePrefix is the shared name prefix of every episode written for a
// document. Subgraph queries filter on it to stay inside one document.
func EpisodePrefix(docID string) string {
	return "doc_" + docID + "_"
}

// EpisodeName builds the deterministic name for the i-th episode of a
// document. unit is "chunk" or "span" depending on ingest mode.
func EpisodeName(docID, unit string, index int) string {
	return fmt.Sprintf("%s%s_%d", EpisodePrefix(docID), unit, index)
}
