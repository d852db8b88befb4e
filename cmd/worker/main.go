package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/internal/agent"
	"github.com/docgraph/pipeline/internal/artifacts"
	"github.com/docgraph/pipeline/internal/graph/gateway"
	"github.com/docgraph/pipeline/internal/graph/ingestor"
	"github.com/docgraph/pipeline/internal/graph/neo4j"
	"github.com/docgraph/pipeline/internal/llm"
	"github.com/docgraph/pipeline/internal/metrics"
	"github.com/docgraph/pipeline/internal/pipeline"
	"github.com/docgraph/pipeline/internal/status"
	"github.com/docgraph/pipeline/pkg/config"
	appLogger "github.com/docgraph/pipeline/pkg/logger"
)

const defaultOntology = `Document graph (per-tenant subgraphs, partitioned by group_id):
  (:Episodic {name, group_id, content, source, valid_at, created_at})
      ingested text units; name carries the doc_* episode prefix
  (:Entity {name, group_id, summary})
      entities derived from episodes by the graph backend
  (:Episodic)-[:MENTIONS]->(:Entity)
  (:Entity)-[:RELATES_TO {fact}]->(:Entity)

Domain graph (canonical business entities, optionally partitioned by workspace):
  (:Entity {id, name, type, workspace})
  (:Entity)-[:RELATED {kind}]->(:Entity)`

func main() {
	var (
		tenantID    = flag.String("tenant", "", "tenant identifier (required)")
		docID       = flag.String("doc", "", "document identifier (required)")
		blobPath    = flag.String("blob", "", "blob store path of the raw document (required)")
		filename    = flag.String("filename", "", "original filename (defaults to the blob basename)")
		contentType = flag.String("content-type", "", "MIME type hint")
		sourceName  = flag.String("source", "", "human-readable source name")
		sourceURL   = flag.String("source-url", "", "source URL for attribution")
		blobRoot    = flag.String("blob-root", ".", "local blob store root directory")
	)
	flag.Parse()

	if *tenantID == "" || *docID == "" || *blobPath == "" {
		fmt.Fprintln(os.Stderr, "worker: -tenant, -doc and -blob are required")
		flag.Usage()
		os.Exit(2)
	}
	if *filename == "" {
		*filename = filepath.Base(*blobPath)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting document pipeline worker",
		zap.String("tenant_id", *tenantID),
		zap.String("doc_id", *docID),
	)

	metrics.Register()

	store, err := artifacts.NewSQLiteStore(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to open artifact store", zap.Error(err))
	}
	defer store.Close()

	docGraph := neo4j.NewClient("document-graph", neo4j.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	defer docGraph.Close(context.Background())

	domainCfg := neo4j.Config{
		URI:      cfg.DomainGraph.URI,
		Username: cfg.DomainGraph.Username,
		Password: cfg.DomainGraph.Password,
		Database: cfg.DomainGraph.Database,
	}
	if !domainCfg.Configured() {
		appLogger.Warn("Domain graph not configured, resolution queries will fail closed")
	}
	// Always wire the domain gateway; an unconfigured client surfaces as a
	// structured query error instead of a missing dependency.
	domainGraph := neo4j.NewClient("domain-graph", domainCfg)
	defer domainGraph.Close(context.Background())

	docGateway := gateway.New(docGraph, 0)
	domainGateway := gateway.New(domainGraph, 0)

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var reporter status.Reporter
	redisReporter, err := status.NewRedisReporter(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, status updates disabled", zap.Error(err))
		reporter = status.NopReporter{}
	} else {
		defer redisReporter.Close()
		reporter = redisReporter
	}

	ontology := agent.StaticOntology(defaultOntology)
	miner := agent.NewMiner(llmClient, docGateway, ontology, store, cfg.Agent.MaxToolCalls, cfg.Agent.NoteMaxBytes)
	resolver := agent.NewResolver(llmClient, docGateway, domainGateway, ontology, cfg.DomainGraph.Workspace, cfg.Agent.MaxToolCalls)

	ing := ingestor.New(docGraph, cfg.Ingest.Concurrency)

	pipe := pipeline.New(
		&artifacts.FSBlobReader{Root: *blobRoot},
		store,
		ing,
		miner,
		resolver,
		reporter,
		pipeline.Config{
			UseChunks:       cfg.Ingest.UseChunks,
			MaxChars:        cfg.Chunking.MaxChars,
			Overlap:         cfg.Chunking.Overlap,
			ResolverEnabled: cfg.Resolver.Enabled,
		},
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Warn("Ops server failed", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := pipe.Run(ctx, pipeline.WorkItem{
		TenantID:    *tenantID,
		DocID:       *docID,
		BlobPath:    *blobPath,
		Filename:    *filename,
		ContentType: *contentType,
		SourceName:  *sourceName,
		SourceURL:   *sourceURL,
	})

	app.Shutdown()

	if runErr != nil {
		appLogger.Error("Worker exiting with failure", zap.Error(runErr))
		os.Exit(1)
	}
	appLogger.Info("Worker finished")
}
