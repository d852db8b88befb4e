package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docgraph/pipeline/internal/artifacts"
	"github.com/docgraph/pipeline/internal/graph/gateway"
)

// Tool pairs an OpenAI function definition with its handler. Handlers return
// the string fed back into the transcript.
type Tool struct {
	Definition openai.Tool
	Handler    func(ctx context.Context, args json.RawMessage) (string, error)
}

// OntologyProvider describes the entity/relationship schema the agents work
// against. External capability; read-only.
type OntologyProvider interface {
	Describe(ctx context.Context) (string, error)
}

// StaticOntology serves a fixed schema description.
type StaticOntology string

func (s StaticOntology) Describe(context.Context) (string, error) {
	return string(s), nil
}

const defaultNoteMaxBytes = 256 * 1024

var noteKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func fnTool(name, description string, parameters map[string]any, handler func(ctx context.Context, args json.RawMessage) (string, error)) Tool {
	return Tool{
		Definition: openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  parameters,
			},
		},
		Handler: handler,
	}
}

func ontologyTool(provider OntologyProvider) Tool {
	return fnTool(
		"get_ontology",
		"Fetch the entity and relationship schema of the knowledge graph.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, _ json.RawMessage) (string, error) {
			return provider.Describe(ctx)
		},
	)
}

type queryArgs struct {
	Query string `json:"query"`
}

var queryParameters = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "A read-only Cypher query. Must contain MATCH and RETURN; write clauses are rejected.",
		},
	},
	"required": []string{"query"},
}

// documentQueryTool scopes execution to one tenant/document via the injected
// $episode_prefix and $group_id parameters. Filter on both in every query.
func documentQueryTool(gw *gateway.Gateway, tenantID, docID string) Tool {
	return fnTool(
		"query_document_graph",
		"Run a read-only Cypher query against this document's subgraph. "+
			"The parameters $episode_prefix and $group_id are provided; filter on both in every query.",
		queryParameters,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var qa queryArgs
			if err := json.Unmarshal(args, &qa); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			resp := gw.RunDocumentQuery(ctx, tenantID, docID, qa.Query, nil)
			return marshalResponse(resp)
		},
	)
}

// domainQueryTool points the same validation rules at the shared domain
// graph. No tenant/document scoping is injected; the optional workspace
// identifier is the only scope.
func domainQueryTool(gw *gateway.Gateway, workspace string) Tool {
	return fnTool(
		"query_domain_graph",
		"Run a read-only Cypher query against the canonical domain graph of business entities.",
		queryParameters,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			if gw == nil {
				return "", fmt.Errorf("domain graph not configured")
			}
			var qa queryArgs
			if err := json.Unmarshal(args, &qa); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			resp := gw.RunDomainQuery(ctx, workspace, qa.Query, nil)
			return marshalResponse(resp)
		},
	)
}

type saveNoteArgs struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

type getNoteArgs struct {
	Key string `json:"key"`
}

// noteTools give the model a small working memory to checkpoint progress
// across tool calls on very large subgraphs. Notes are scoped to
// (tenant_id, doc_id); this is not cross-document memory.
func noteTools(store artifacts.Store, tenantID, docID string, maxBytes int) []Tool {
	if maxBytes <= 0 {
		maxBytes = defaultNoteMaxBytes
	}
	save := fnTool(
		"save_note",
		"Save a working-memory note under a short alphanumeric key, overwriting any prior note with that key.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":     map[string]any{"type": "string", "description": "Alphanumeric key, at most 64 characters."},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"key", "content"},
		},
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var na saveNoteArgs
			if err := json.Unmarshal(args, &na); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if !noteKeyPattern.MatchString(na.Key) {
				return "", fmt.Errorf("invalid note key %q: use 1-64 characters from [A-Za-z0-9_-]", na.Key)
			}
			if len(na.Content) > maxBytes {
				return "", fmt.Errorf("note exceeds %d byte limit", maxBytes)
			}
			if err := store.PutNote(ctx, tenantID, docID, na.Key, []byte(na.Content)); err != nil {
				return "", err
			}
			return "saved", nil
		},
	)

	get := fnTool(
		"get_note",
		"Read back a working-memory note previously saved with save_note.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{"type": "string"},
			},
			"required": []string{"key"},
		},
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var na getNoteArgs
			if err := json.Unmarshal(args, &na); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if !noteKeyPattern.MatchString(na.Key) {
				return "", fmt.Errorf("invalid note key %q", na.Key)
			}
			data, found, err := store.GetNote(ctx, tenantID, docID, na.Key)
			if err != nil {
				return "", err
			}
			if !found {
				return "no note under that key", nil
			}
			return string(data), nil
		},
	)

	return []Tool{save, get}
}

func marshalResponse(resp gateway.Response) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal query response: %w", err)
	}
	return string(data), nil
}
