package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/artifacts"
	"github.com/docgraph/pipeline/internal/graph/gateway"
	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/pkg/logger"
)

const minerSystemPrompt = `You are a knowledge extraction agent working over one document's subgraph in a knowledge graph.

Your job: mine the subgraph into subject-predicate-object assertions about the entities the document mentions. Work only from what the graph returns; do not invent entities or relationships.

Process:
1. Call get_ontology once to learn the schema.
2. Explore the document subgraph with query_document_graph. Always filter on the provided $episode_prefix and $group_id parameters.
3. On large subgraphs, checkpoint intermediate findings with save_note / get_note so you can continue after many queries.

When done, answer with ONLY a JSON array of records:
[{"source_entity": "...", "assertion": "short verb phrase", "terminal_entity": "...", "source": "...", "source_url": "..."}]

source and source_url are optional; omit them if unknown. Entity names stay exactly as the document uses them; no canonicalization in this phase.`

// Miner is the phase-1 agent: it mines a document's subgraph into
// document-local assertions. No domain reconciliation happens here, so
// mining runs even when the domain graph is unavailable and resolution can
// be re-run later without re-mining.
type Miner struct {
	llm          Chatter
	gateway      *gateway.Gateway
	ontology     OntologyProvider
	store        artifacts.Store
	maxToolCalls int
	noteMaxBytes int
}

func NewMiner(llm Chatter, gw *gateway.Gateway, ontology OntologyProvider, store artifacts.Store, maxToolCalls, noteMaxBytes int) *Miner {
	return &Miner{
		llm:          llm,
		gateway:      gw,
		ontology:     ontology,
		store:        store,
		maxToolCalls: maxToolCalls,
		noteMaxBytes: noteMaxBytes,
	}
}

// Mine runs the mining loop for one document and returns the assertion
// records with source fields defaulted from the document metadata. A
// tool-budget exhaustion still yields whatever partial records the model
// produced.
func (m *Miner) Mine(ctx context.Context, meta provenance.DocMeta) ([]provenance.MiningAssertionRecord, State, error) {
	tools := []Tool{
		ontologyTool(m.ontology),
		documentQueryTool(m.gateway, meta.TenantID, meta.DocID),
	}
	tools = append(tools, noteTools(m.store, meta.TenantID, meta.DocID, m.noteMaxBytes)...)

	loop := NewLoop(m.llm, tools, m.maxToolCalls, "mining")

	userPrompt := fmt.Sprintf(
		"Mine the subgraph of document %s (tenant %s) into assertions. The document has %d ingested episodes.",
		meta.DocID, meta.TenantID, meta.EpisodeCount,
	)

	content, state, err := loop.Run(ctx, minerSystemPrompt, userPrompt)
	if err != nil {
		return nil, state, err
	}

	records, err := decodeJSONList[provenance.MiningAssertionRecord](content)
	if err != nil {
		if state == StateToolBudgetExceeded {
			// Partial output may be unparseable; exhaustion is still not an
			// error, just an empty result.
			logger.Warn("Discarding unparseable partial mining output", zap.String("doc_id", meta.DocID))
			return nil, state, nil
		}
		return nil, StateFailed, err
	}

	for i := range records {
		if records[i].Source == "" {
			records[i].Source = meta.SourceName
			if records[i].Source == "" {
				records[i].Source = meta.Filename
			}
		}
		if records[i].SourceURL == "" {
			records[i].SourceURL = meta.SourceURL
			if records[i].SourceURL == "" {
				records[i].SourceURL = meta.BlobURI
			}
		}
	}

	logger.Info("Mining finished",
		zap.String("doc_id", meta.DocID),
		zap.String("state", state.String()),
		zap.Int("assertions", len(records)),
	)

	return records, state, nil
}
