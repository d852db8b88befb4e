package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgraph/pipeline/internal/agent"
	"github.com/docgraph/pipeline/internal/artifacts"
	"github.com/docgraph/pipeline/internal/graph/ingestor"
	graphdb "github.com/docgraph/pipeline/internal/graph/neo4j"
	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/internal/status"
)

type memBlobs map[string][]byte

func (m memBlobs) ReadBlob(_ context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", path)
	}
	return data, nil
}

type memStore struct {
	mu        sync.Mutex
	artifacts map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{artifacts: make(map[string][]byte)}
}

func artifactKey(tenantID, docID string, kind artifacts.Kind) string {
	return tenantID + "/" + docID + "/" + string(kind)
}

func (m *memStore) PutArtifact(_ context.Context, tenantID, docID string, kind artifacts.Kind, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[artifactKey(tenantID, docID, kind)] = payload
	return nil
}

func (m *memStore) GetArtifact(_ context.Context, tenantID, docID string, kind artifacts.Kind, out any) (bool, error) {
	m.mu.Lock()
	payload, ok := m.artifacts[artifactKey(tenantID, docID, kind)]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, out)
}

func (m *memStore) PutNote(context.Context, string, string, string, []byte) error { return nil }

func (m *memStore) GetNote(context.Context, string, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (m *memStore) Close() error { return nil }

type episodeWriter struct {
	mu       sync.Mutex
	episodes []graphdb.Episode
	pingErr  error
}

func (w *episodeWriter) Ping(context.Context) error { return w.pingErr }

func (w *episodeWriter) AddEpisode(_ context.Context, ep graphdb.Episode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.episodes = append(w.episodes, ep)
	return nil
}

type recordingReporter struct {
	stages  []status.Stage
	reasons []string
}

func (r *recordingReporter) Report(_ context.Context, _, _ string, stage status.Stage, reason string) {
	r.stages = append(r.stages, stage)
	r.reasons = append(r.reasons, reason)
}

type scriptedChatter struct {
	content string
	err     error
	calls   int
}

func (s *scriptedChatter) Chat(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (openai.ChatCompletionMessage, error) {
	s.calls++
	if s.err != nil {
		return openai.ChatCompletionMessage{}, s.err
	}
	return openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: s.content,
	}, nil
}

const minerOutput = `[
	{"source_entity":"Acme","assertion":"acquired","terminal_entity":"Globex"},
	{"source_entity":"Globex","assertion":"operates in","terminal_entity":"Springfield"}
]`

const resolverOutput = `[
	{"name":"Acme","domain_node_id":"n-1","domain_entity_name":"Acme Corp","domain_entity_type":"Company"},
	{"name":"Globex"},
	{"name":"Springfield"}
]`

type fixture struct {
	pipe     *Pipeline
	store    *memStore
	writer   *episodeWriter
	reporter *recordingReporter
	mining   *scriptedChatter
	resolve  *scriptedChatter
}

func newFixture(t *testing.T, resolverEnabled bool) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		writer:   &episodeWriter{},
		reporter: &recordingReporter{},
		mining:   &scriptedChatter{content: minerOutput},
		resolve:  &scriptedChatter{content: resolverOutput},
	}

	blobs := memBlobs{
		"acme/report.txt": []byte("Acme acquired Globex in March.\n\nGlobex operates in Springfield.\n"),
	}

	miner := agent.NewMiner(f.mining, nil, agent.StaticOntology("schema"), f.store, 5, 0)
	resolver := agent.NewResolver(f.resolve, nil, nil, agent.StaticOntology("schema"), "", 5)

	f.pipe = New(
		blobs,
		f.store,
		ingestor.New(f.writer, 2),
		miner,
		resolver,
		f.reporter,
		Config{UseChunks: true, MaxChars: 6000, ResolverEnabled: resolverEnabled},
	)
	return f
}

func workItem() WorkItem {
	return WorkItem{
		TenantID: "acme",
		DocID:    "doc-1",
		BlobPath: "acme/report.txt",
		Filename: "report.txt",
	}
}

func TestPipelineRunCompletes(t *testing.T) {
	f := newFixture(t, true)

	err := f.pipe.Run(context.Background(), workItem())
	require.NoError(t, err)

	t.Run("stage progression", func(t *testing.T) {
		assert.Equal(t, []status.Stage{
			status.StageDownloading,
			status.StageNormalizing,
			status.StageExtracting,
			status.StageMining,
			status.StageResolving,
			status.StageCompleted,
		}, f.reporter.stages)
	})

	t.Run("spans artifact", func(t *testing.T) {
		var spans []provenance.Span
		found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindSpans, &spans)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, spans, 2)
		assert.Equal(t, "Acme acquired Globex in March.", spans[0].Text)
	})

	t.Run("meta artifact records counts", func(t *testing.T) {
		var meta provenance.DocMeta
		found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindMeta, &meta)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 2, meta.SpanCount)
		assert.Equal(t, 1, meta.EpisodeCount)
		assert.False(t, meta.NormalizedAt.IsZero())
	})

	t.Run("episodes written under tenant namespace", func(t *testing.T) {
		require.Len(t, f.writer.episodes, 1)
		assert.Equal(t, "tenant_acme", f.writer.episodes[0].GroupID)
		assert.True(t, strings.HasPrefix(f.writer.episodes[0].Name, "doc_doc-1_"))
	})

	t.Run("assertions artifact", func(t *testing.T) {
		var records []provenance.MiningAssertionRecord
		found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindAssertions, &records)
		require.NoError(t, err)
		require.True(t, found)
		assert.Len(t, records, 2)
	})

	t.Run("resolved artifact", func(t *testing.T) {
		var records []provenance.ResolvedEntityRecord
		found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindResolved, &records)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, records, 3)
		assert.True(t, records[0].Resolved())
		assert.False(t, records[1].Resolved())
	})
}

func TestPipelineResolverDisabled(t *testing.T) {
	f := newFixture(t, false)

	err := f.pipe.Run(context.Background(), workItem())
	require.NoError(t, err)

	assert.Zero(t, f.resolve.calls, "disabled resolver must never call the model")
	assert.Equal(t, status.StageCompleted, f.reporter.stages[len(f.reporter.stages)-1])

	var assertionRecords []provenance.MiningAssertionRecord
	found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindAssertions, &assertionRecords)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, assertionRecords, 2)

	// The resolved artifact still exists, as an empty list.
	var resolved []provenance.ResolvedEntityRecord
	found, err = f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindResolved, &resolved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, resolved)
}

func TestPipelineDownloadFailure(t *testing.T) {
	f := newFixture(t, true)

	item := workItem()
	item.BlobPath = "acme/missing.txt"

	err := f.pipe.Run(context.Background(), item)
	require.Error(t, err)

	last := len(f.reporter.stages) - 1
	assert.Equal(t, status.StageFailed, f.reporter.stages[last])
	assert.True(t, strings.HasPrefix(f.reporter.reasons[last], "downloading:"))

	var spans []provenance.Span
	found, _ := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindSpans, &spans)
	assert.False(t, found, "no artifacts before the failing stage completed")
}

func TestPipelineNormalizeFailure(t *testing.T) {
	f := newFixture(t, true)

	item := workItem()
	item.Filename = "report.bin"

	err := f.pipe.Run(context.Background(), item)
	require.Error(t, err)

	last := len(f.reporter.stages) - 1
	assert.Equal(t, status.StageFailed, f.reporter.stages[last])
	assert.True(t, strings.HasPrefix(f.reporter.reasons[last], "normalizing:"))
}

func TestPipelineMiningFailureKeepsEarlierArtifacts(t *testing.T) {
	f := newFixture(t, true)
	f.mining.err = errors.New("model unavailable")

	err := f.pipe.Run(context.Background(), workItem())
	require.Error(t, err)

	last := len(f.reporter.stages) - 1
	assert.Equal(t, status.StageFailed, f.reporter.stages[last])
	assert.True(t, strings.HasPrefix(f.reporter.reasons[last], "mining:"))

	// Normalization output survives the phase-1 failure.
	var spans []provenance.Span
	found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindSpans, &spans)
	require.NoError(t, err)
	assert.True(t, found)

	var meta provenance.DocMeta
	found, err = f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindMeta, &meta)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPipelineResolutionFailureKeepsMiningArtifact(t *testing.T) {
	f := newFixture(t, true)
	f.resolve.err = errors.New("domain graph offline")

	err := f.pipe.Run(context.Background(), workItem())
	require.Error(t, err)

	last := len(f.reporter.stages) - 1
	assert.Equal(t, status.StageFailed, f.reporter.stages[last])
	assert.True(t, strings.HasPrefix(f.reporter.reasons[last], "resolving:"))

	var records []provenance.MiningAssertionRecord
	found, err := f.store.GetArtifact(context.Background(), "acme", "doc-1", artifacts.KindAssertions, &records)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, records, 2, "mining output is still usable after a resolution failure")
}
