// Package gateway validates and executes agent-authored read queries against
// a scoped portion of the graph. This is the only place model output reaches
// the graph database, and it reaches it as a parameterized query string that
// has passed the validator, never by string interpolation.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/metrics"
	"github.com/docgraph/pipeline/internal/tenant"
	"github.com/docgraph/pipeline/pkg/logger"
)

// Reader is the graph-read contract the gateway executes against.
type Reader interface {
	Read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

// Response is the structured result shape returned to the agent. Validation
// and execution failures populate Error; they are never surfaced as Go
// errors, so a misbehaving model sees a readable reason instead of a stack.
type Response struct {
	Results   []map[string]any `json:"results"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
	Error     string           `json:"error,omitempty"`
}

type Gateway struct {
	reader     Reader
	maxResults int
}

const defaultMaxResults = 50

func New(reader Reader, maxResults int) *Gateway {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Gateway{reader: reader, maxResults: maxResults}
}

// RunDocumentQuery executes a validated query scoped to one tenant and
// document. The episode-name prefix and tenant group id are injected as
// parameters ($episode_prefix, $group_id); the query author is instructed to
// filter on them, but their use is not enforced here.
func (g *Gateway) RunDocumentQuery(ctx context.Context, tenantID, docID, query string, params map[string]any) Response {
	merged := make(map[string]any, len(params)+2)
	for k, v := range params {
		merged[k] = v
	}
	merged["episode_prefix"] = tenant.EpisodePrefix(docID)
	merged["group_id"] = tenant.GroupID(tenantID)

	return g.run(ctx, query, merged)
}

// RunDomainQuery executes a validated query against the shared domain graph.
// The domain graph is not tenant-partitioned; the only injected scope is the
// optional workspace identifier.
func (g *Gateway) RunDomainQuery(ctx context.Context, workspace, query string, params map[string]any) Response {
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	if workspace != "" {
		merged["workspace"] = workspace
	}

	return g.run(ctx, query, merged)
}

func (g *Gateway) run(ctx context.Context, query string, params map[string]any) Response {
	query = strings.TrimSpace(query)

	if reason := Validate(query); reason != "" {
		metrics.QueriesRejected.WithLabelValues(rejectionLabel(reason)).Inc()
		logger.Warn("Guarded query rejected", zap.String("reason", reason))
		return Response{Results: []map[string]any{}, Error: reason}
	}

	if !hasLimit(query) {
		query = fmt.Sprintf("%s\nLIMIT %d", query, g.maxResults+1)
	}

	records, err := g.reader.Read(ctx, query, params)
	if err != nil {
		// Full detail stays server-side; the agent gets a generic reason.
		logger.Error("Guarded query execution failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return Response{Results: []map[string]any{}, Error: "query execution failed"}
	}
	metrics.QueriesExecuted.Inc()

	truncated := false
	if len(records) > g.maxResults {
		records = records[:g.maxResults]
		truncated = true
	}

	results := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = jsonSafe(record.Values[i])
		}
		results = append(results, row)
	}

	return Response{Results: results, Count: len(results), Truncated: truncated}
}

func rejectionLabel(reason string) string {
	switch {
	case strings.Contains(reason, "empty"):
		return "empty"
	case strings.Contains(reason, "write clause"):
		return "write_clause"
	case strings.Contains(reason, "MATCH"):
		return "missing_match"
	case strings.Contains(reason, "RETURN"):
		return "missing_return"
	default:
		return "other"
	}
}
