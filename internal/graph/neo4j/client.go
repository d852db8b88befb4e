// Package neo4j wraps the graph database driver behind lazily-initialized
// read and write clients. A failed connectivity check clears the cached
// driver so the next call retries fresh.
package neo4j

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/pkg/circuitbreaker"
	"github.com/docgraph/pipeline/pkg/logger"
	"github.com/docgraph/pipeline/pkg/retry"
)

// Episode is the graph database's unit of ingested text. The database derives
// entities and mentions from it asynchronously; this pipeline only needs the
// write acknowledgment.
type Episode struct {
	Name      string
	Body      string
	GroupID   string
	Reference time.Time
}

type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Configured reports whether a graph endpoint was provided at all.
func (c Config) Configured() bool {
	return c.URI != ""
}

// Client is a lazily-connected Neo4j handle shared by the writer and reader
// paths. Safe for concurrent use; the driver carries its own thread-safety
// guarantees and the ingestor's limiter bounds concurrent use.
type Client struct {
	cfg         Config
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config

	mu     sync.Mutex
	driver neo4j.DriverWithContext
}

func NewClient(name string, cfg Config) *Client {
	cb := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	return &Client{
		cfg:         cfg,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// conn returns the cached driver, dialing and verifying connectivity on first
// use. On verification failure the handle is cleared so re-initialization is
// idempotent.
func (c *Client) conn(ctx context.Context) (neo4j.DriverWithContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver != nil {
		return c.driver, nil
	}
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("graph database not configured")
	}

	driver, err := neo4j.NewDriverWithContext(
		c.cfg.URI,
		neo4j.BasicAuth(c.cfg.Username, c.cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	logger.Info("Neo4j client initialized", zap.String("uri", c.cfg.URI))

	c.driver = driver
	return c.driver, nil
}

// Ping verifies the graph is reachable, establishing the connection if
// needed. A cached driver is re-verified; on failure the handle is dropped
// so the next call dials fresh.
func (c *Client) Ping(ctx context.Context) error {
	driver, err := c.conn(ctx)
	if err != nil {
		return err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		c.mu.Lock()
		if c.driver == driver {
			_ = c.driver.Close(ctx)
			c.driver = nil
		}
		c.mu.Unlock()
		return fmt.Errorf("failed to verify connectivity: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

func (c *Client) execute(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	driver, err := c.conn(ctx)
	if err != nil {
		return err
	}

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.cfg.Database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// AddEpisode writes one episode node. Episode names are deterministic and
// never contain secrets; re-ingestion overwrites the node wholesale.
func (c *Client) AddEpisode(ctx context.Context, ep Episode) error {
	query := `
		MERGE (e:Episodic {name: $name, group_id: $group_id})
		SET e.content = $content,
		    e.source = 'document',
		    e.valid_at = $reference,
		    e.created_at = timestamp()
	`

	err := c.execute(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, query, map[string]any{
			"name":      ep.Name,
			"group_id":  ep.GroupID,
			"content":   ep.Body,
			"reference": ep.Reference.UTC().Format(time.RFC3339),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write episode %s: %w", ep.Name, err)
	}

	logger.Debug("Episode written", zap.String("name", ep.Name), zap.String("group_id", ep.GroupID))
	return nil
}

// Read runs a parameterized read query and returns the raw records. The
// guarded gateway owns validation and result shaping; nothing else in the
// pipeline issues free-form queries.
func (c *Client) Read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	var records []*neo4j.Record

	err := c.execute(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, query, params)
		if err != nil {
			return err
		}
		records, err = result.Collect(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
