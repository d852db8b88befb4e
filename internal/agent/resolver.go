package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/graph/gateway"
	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/pkg/logger"
)

const resolverSystemPrompt = `You are an entity resolution agent. You receive document-local entity names and must reconcile each against a canonical domain graph of business entities.

Process:
1. Call get_ontology once to learn the domain schema.
2. For each entity name, search the domain graph with query_domain_graph (read-only Cypher; MATCH and RETURN required). Try exact names first, then plausible variants.

When done, answer with ONLY a JSON array, one record per input entity name:
[{"name": "<input name>", "domain_node_id": "...", "domain_entity_name": "...", "domain_entity_type": "..."}]

Set the three domain_* fields ONLY when you found a confident match; otherwise omit them entirely. "No match found" is a correct and expected answer; never fabricate a match to fill the schema.`

// Resolver is the phase-2 agent: it pairs document-local entity names with
// at most one best match in the domain graph. It is feature-flagged at the
// pipeline level; running with zero matches is a valid outcome.
type Resolver struct {
	llm          Chatter
	documentGW   *gateway.Gateway
	domainGW     *gateway.Gateway
	ontology     OntologyProvider
	workspace    string
	maxToolCalls int
}

func NewResolver(llm Chatter, documentGW, domainGW *gateway.Gateway, ontology OntologyProvider, workspace string, maxToolCalls int) *Resolver {
	return &Resolver{
		llm:          llm,
		documentGW:   documentGW,
		domainGW:     domainGW,
		ontology:     ontology,
		workspace:    workspace,
		maxToolCalls: maxToolCalls,
	}
}

// ResolveAssertions reconciles the entity names appearing in mined
// assertions against the domain graph.
func (r *Resolver) ResolveAssertions(ctx context.Context, assertions []provenance.MiningAssertionRecord) ([]provenance.ResolvedEntityRecord, State, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, a := range assertions {
		for _, name := range []string{a.SourceEntity, a.TerminalEntity} {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return r.resolve(ctx, names)
}

// ResolveFromSubgraph re-derives the document's entity names with a guarded
// subgraph query, independent of phase-1 output, then resolves them. This
// lets resolution re-run without re-mining.
func (r *Resolver) ResolveFromSubgraph(ctx context.Context, tenantID, docID string) ([]provenance.ResolvedEntityRecord, State, error) {
	resp := r.documentGW.RunDocumentQuery(ctx, tenantID, docID, `
		MATCH (n:Entity)
		WHERE n.group_id = $group_id
		RETURN DISTINCT n.name AS name
		ORDER BY name
	`, nil)
	if resp.Error != "" {
		return nil, StateFailed, fmt.Errorf("deriving entities from subgraph: %s", resp.Error)
	}

	var names []string
	for _, row := range resp.Results {
		if name, ok := row["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}

	return r.resolve(ctx, names)
}

func (r *Resolver) resolve(ctx context.Context, names []string) ([]provenance.ResolvedEntityRecord, State, error) {
	if len(names) == 0 {
		return nil, StateCompleted, nil
	}

	tools := []Tool{
		ontologyTool(r.ontology),
		domainQueryTool(r.domainGW, r.workspace),
	}
	loop := NewLoop(r.llm, tools, r.maxToolCalls, "resolving")

	nameList, err := json.Marshal(names)
	if err != nil {
		return nil, StateFailed, err
	}
	userPrompt := fmt.Sprintf("Resolve these document-local entity names against the domain graph:\n%s", nameList)

	content, state, err := loop.Run(ctx, resolverSystemPrompt, userPrompt)
	if err != nil {
		return nil, state, err
	}

	records, err := decodeJSONList[provenance.ResolvedEntityRecord](content)
	if err != nil {
		if state == StateToolBudgetExceeded {
			logger.Warn("Discarding unparseable partial resolution output")
			return nil, state, nil
		}
		return nil, StateFailed, err
	}

	matched := 0
	for _, rec := range records {
		if rec.Resolved() {
			matched++
		}
	}
	logger.Info("Resolution finished",
		zap.String("state", state.String()),
		zap.Int("entities", len(records)),
		zap.Int("matched", matched),
	)

	return records, state, nil
}
