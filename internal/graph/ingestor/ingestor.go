// Package ingestor fans document chunks out to the graph database as
// episodes under a bounded concurrency limit.
package ingestor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/chunker"
	graphdb "github.com/docgraph/pipeline/internal/graph/neo4j"
	"github.com/docgraph/pipeline/internal/metrics"
	"github.com/docgraph/pipeline/internal/provenance"
	"github.com/docgraph/pipeline/internal/tenant"
	"github.com/docgraph/pipeline/pkg/logger"
)

// EpisodeWriter is the graph-write contract the ingestor needs.
type EpisodeWriter interface {
	Ping(ctx context.Context) error
	AddEpisode(ctx context.Context, ep graphdb.Episode) error
}

type Ingestor struct {
	writer      EpisodeWriter
	concurrency int
}

const defaultConcurrency = 16

func New(writer EpisodeWriter, concurrency int) *Ingestor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Ingestor{writer: writer, concurrency: concurrency}
}

type pair struct {
	name string
	text string
}

// Ingest writes one episode per chunk (or per non-blank span when useChunks
// is false) and returns the count of successful writes. Episode write
// failures are isolated: one failure is logged and excluded from the count
// without aborting siblings. An unconfigured or unreachable graph yields
// (0, nil): ingestion is best-effort enrichment, not a gate.
func (ing *Ingestor) Ingest(ctx context.Context, tenantID, docID string, spans []provenance.Span, useChunks bool, chunkCfg chunker.Config) (int, error) {
	pairs := buildPairs(docID, spans, useChunks, chunkCfg)
	if len(pairs) == 0 {
		return 0, nil
	}

	if ing.writer == nil {
		logger.Warn("Graph database not configured, skipping ingestion", zap.String("doc_id", docID))
		return 0, nil
	}
	if err := ing.writer.Ping(ctx); err != nil {
		logger.Warn("Graph database unreachable, skipping ingestion",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		return 0, nil
	}

	groupID := tenant.GroupID(tenantID)
	reference := time.Now().UTC()

	pool, err := ants.NewPool(ing.concurrency)
	if err != nil {
		logger.Error("Failed to create ingest pool", zap.Error(err))
		return 0, nil
	}
	defer pool.Release()

	var succeeded int64
	var wg sync.WaitGroup

	for _, p := range pairs {
		p := p

		select {
		case <-ctx.Done():
			logger.Warn("Ingestion cancelled",
				zap.String("doc_id", docID),
				zap.Int64("written", atomic.LoadInt64(&succeeded)),
			)
			wg.Wait()
			return int(atomic.LoadInt64(&succeeded)), nil
		default:
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			err := ing.writer.AddEpisode(ctx, graphdb.Episode{
				Name:      p.name,
				Body:      p.text,
				GroupID:   groupID,
				Reference: reference,
			})
			if err != nil {
				logger.Warn("Episode write failed",
					zap.String("episode", p.name),
					zap.Error(err),
				)
				return
			}
			atomic.AddInt64(&succeeded, 1)
			metrics.EpisodesWritten.Inc()
		})
		if submitErr != nil {
			wg.Done()
			logger.Warn("Episode submit failed", zap.String("episode", p.name), zap.Error(submitErr))
		}
	}

	wg.Wait()

	count := int(atomic.LoadInt64(&succeeded))
	logger.Info("Document ingested",
		zap.String("doc_id", docID),
		zap.Int("episodes", count),
		zap.Int("attempted", len(pairs)),
	)

	return count, nil
}

func buildPairs(docID string, spans []provenance.Span, useChunks bool, chunkCfg chunker.Config) []pair {
	if useChunks {
		chunks := chunker.Chunk(spans, chunkCfg)
		pairs := make([]pair, 0, len(chunks))
		for i, c := range chunks {
			pairs = append(pairs, pair{
				name: tenant.EpisodeName(docID, "chunk", i),
				text: c.Text,
			})
		}
		return pairs
	}

	var pairs []pair
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		pairs = append(pairs, pair{
			name: tenant.EpisodeName(docID, "span", len(pairs)),
			text: s.Text,
		})
	}
	return pairs
}
