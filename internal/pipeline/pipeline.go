// Package pipeline orchestrates one document-processing run: download,
// normalize, chunk + ingest, mine, resolve. The external scheduler invokes
// Run once per work item and owns retries.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/agent"
	"github.com/docgraph/pipeline/internal/artifacts"
	"github.com/docgraph/pipeline/internal/chunker"
	"github.com/docgraph/pipeline/internal/graph/ingestor"
	"github.com/docgraph/pipeline/internal/metrics"
	"github.com/docgraph/pipeline/internal/normalize"
	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/internal/status"
	"github.com/docgraph/pipeline/pkg/logger"
)

// WorkItem identifies one document to process. BlobPath is the caller's
// path into the blob store.
type WorkItem struct {
	TenantID    string `json:"tenant_id"`
	DocID       string `json:"doc_id"`
	BlobPath    string `json:"blob_path"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SourceName  string `json:"source,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

type Config struct {
	UseChunks       bool
	MaxChars        int
	Overlap         int
	ResolverEnabled bool
}

type Pipeline struct {
	blobs    artifacts.BlobReader
	store    artifacts.Store
	ingestor *ingestor.Ingestor
	miner    *agent.Miner
	resolver *agent.Resolver
	reporter status.Reporter
	cfg      Config
}

func New(blobs artifacts.BlobReader, store artifacts.Store, ing *ingestor.Ingestor, miner *agent.Miner, resolver *agent.Resolver, reporter status.Reporter, cfg Config) *Pipeline {
	if reporter == nil {
		reporter = status.NopReporter{}
	}
	return &Pipeline{
		blobs:    blobs,
		store:    store,
		ingestor: ing,
		miner:    miner,
		resolver: resolver,
		reporter: reporter,
		cfg:      cfg,
	}
}

// Run processes one document end to end. Artifacts written by earlier stages
// stay in place when a later stage fails; nothing is rolled back.
func (p *Pipeline) Run(ctx context.Context, item WorkItem) error {
	logger.Info("Pipeline run started",
		zap.String("tenant_id", item.TenantID),
		zap.String("doc_id", item.DocID),
		zap.String("blob_path", item.BlobPath),
	)

	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageDownloading, "")
	start := time.Now()
	raw, err := p.blobs.ReadBlob(ctx, item.BlobPath)
	if err != nil {
		return p.fail(ctx, item, "downloading", err)
	}
	observe("download", start)

	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageNormalizing, "")
	start = time.Now()
	spans, err := normalize.Normalize(raw, item.DocID, item.TenantID, item.Filename, item.ContentType)
	if err != nil {
		return p.fail(ctx, item, "normalizing", err)
	}
	observe("normalize", start)
	metrics.SpansExtracted.Add(float64(len(spans)))

	meta := provenance.DocMeta{
		DocID:        item.DocID,
		TenantID:     item.TenantID,
		Filename:     item.Filename,
		ContentType:  item.ContentType,
		BlobURI:      item.BlobPath,
		SourceName:   item.SourceName,
		SourceURL:    item.SourceURL,
		SpanCount:    len(spans),
		NormalizedAt: time.Now().UTC(),
	}

	if err := p.store.PutArtifact(ctx, item.TenantID, item.DocID, artifacts.KindSpans, spans); err != nil {
		return p.fail(ctx, item, "normalizing", err)
	}
	if err := p.store.PutArtifact(ctx, item.TenantID, item.DocID, artifacts.KindMeta, meta); err != nil {
		return p.fail(ctx, item, "normalizing", err)
	}

	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageExtracting, "")
	start = time.Now()
	episodeCount, err := p.ingestor.Ingest(ctx, item.TenantID, item.DocID, spans, p.cfg.UseChunks, chunker.Config{
		MaxChars: p.cfg.MaxChars,
		Overlap:  p.cfg.Overlap,
	})
	if err != nil {
		return p.fail(ctx, item, "extracting", err)
	}
	observe("ingest", start)

	meta.EpisodeCount = episodeCount
	if err := p.store.PutArtifact(ctx, item.TenantID, item.DocID, artifacts.KindMeta, meta); err != nil {
		return p.fail(ctx, item, "extracting", err)
	}

	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageMining, "")
	start = time.Now()
	assertions, mineState, err := p.miner.Mine(ctx, meta)
	if err != nil {
		return p.fail(ctx, item, "mining", err)
	}
	observe("mine", start)
	if assertions == nil {
		assertions = []provenance.MiningAssertionRecord{}
	}
	if err := p.store.PutArtifact(ctx, item.TenantID, item.DocID, artifacts.KindAssertions, assertions); err != nil {
		return p.fail(ctx, item, "mining", err)
	}

	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageResolving, "")
	resolved := []provenance.ResolvedEntityRecord{}
	if p.cfg.ResolverEnabled {
		start = time.Now()
		records, _, err := p.resolver.ResolveAssertions(ctx, assertions)
		if err != nil {
			// Mining already persisted; a resolution failure leaves the
			// document usable and is reported on its own.
			return p.fail(ctx, item, "resolving", err)
		}
		observe("resolve", start)
		if records != nil {
			resolved = records
		}
	}
	if err := p.store.PutArtifact(ctx, item.TenantID, item.DocID, artifacts.KindResolved, resolved); err != nil {
		return p.fail(ctx, item, "resolving", err)
	}

	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageCompleted, "")
	metrics.DocumentsProcessed.WithLabelValues("completed").Inc()

	logger.Info("Pipeline run completed",
		zap.String("doc_id", item.DocID),
		zap.Int("spans", len(spans)),
		zap.Int("episodes", episodeCount),
		zap.Int("assertions", len(assertions)),
		zap.Int("resolved_entities", len(resolved)),
		zap.String("mining_state", mineState.String()),
	)

	return nil
}

func (p *Pipeline) fail(ctx context.Context, item WorkItem, stage string, err error) error {
	reason := fmt.Sprintf("%s: %v", stage, err)
	p.reporter.Report(ctx, item.TenantID, item.DocID, status.StageFailed, reason)
	metrics.DocumentsProcessed.WithLabelValues("failed").Inc()

	logger.Error("Pipeline run failed",
		zap.String("tenant_id", item.TenantID),
		zap.String("doc_id", item.DocID),
		zap.String("stage", stage),
		zap.Error(err),
	)

	return fmt.Errorf("%s: %w", stage, err)
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
