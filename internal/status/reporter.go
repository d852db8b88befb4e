// Package status emits coarse-grained stage markers for an external progress
// UI. Reporting is best effort: a failed update is logged and never aborts
// the pipeline.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/pkg/logger"
)

type Stage string

const (
	StageDownloading Stage = "downloading"
	StageNormalizing Stage = "normalizing"
	StageExtracting  Stage = "extracting"
	StageMining      Stage = "mining"
	StageResolving   Stage = "resolving"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

type Reporter interface {
	Report(ctx context.Context, tenantID, docID string, stage Stage, reason string)
}

type update struct {
	TenantID  string `json:"tenant_id"`
	DocID     string `json:"doc_id"`
	Stage     Stage  `json:"stage"`
	Reason    string `json:"reason,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

const (
	statusTTL     = 24 * time.Hour
	statusChannel = "pipeline.status"
)

type RedisReporter struct {
	client *redis.Client
}

var _ Reporter = (*RedisReporter)(nil)

func NewRedisReporter(host string, port int, password string, db int) (*RedisReporter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Status reporter initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &RedisReporter{client: client}, nil
}

func (r *RedisReporter) Close() error {
	return r.client.Close()
}

func (r *RedisReporter) Report(ctx context.Context, tenantID, docID string, stage Stage, reason string) {
	payload, err := json.Marshal(update{
		TenantID:  tenantID,
		DocID:     docID,
		Stage:     stage,
		Reason:    reason,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		logger.Warn("Failed to marshal status update", zap.Error(err))
		return
	}

	key := fmt.Sprintf("status:%s:%s", tenantID, docID)
	if err := r.client.Set(ctx, key, payload, statusTTL).Err(); err != nil {
		logger.Warn("Failed to write status update", zap.String("key", key), zap.Error(err))
	}
	if err := r.client.Publish(ctx, statusChannel, payload).Err(); err != nil {
		logger.Warn("Failed to publish status update", zap.String("key", key), zap.Error(err))
	}
}

// NopReporter is used when redis is not configured.
type NopReporter struct{}

var _ Reporter = NopReporter{}

func (NopReporter) Report(context.Context, string, string, Stage, string) {}
