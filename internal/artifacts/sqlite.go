package artifacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docgraph/pipeline/pkg/logger"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		tenant_id  TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		payload    BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, doc_id, kind)
	);

	CREATE TABLE IF NOT EXISTS notes (
		tenant_id  TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		note_key   TEXT NOT NULL,
		payload    BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, doc_id, note_key)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Artifact store initialized", zap.String("path", dbPath))

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutArtifact serializes value as JSON and replaces any prior artifact of the
// same kind for the document.
func (s *SQLiteStore) PutArtifact(ctx context.Context, tenantID, docID string, kind Kind, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s artifact: %w", kind, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (tenant_id, doc_id, kind, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, doc_id, kind)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, tenantID, docID, string(kind), payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store %s artifact: %w", kind, err)
	}

	logger.Debug("Artifact stored",
		zap.String("tenant_id", tenantID),
		zap.String("doc_id", docID),
		zap.String("kind", string(kind)),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, tenantID, docID string, kind Kind, out any) (bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM artifacts WHERE tenant_id = ? AND doc_id = ? AND kind = ?
	`, tenantID, docID, string(kind)).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s artifact: %w", kind, err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s artifact: %w", kind, err)
	}
	return true, nil
}

func (s *SQLiteStore) PutNote(ctx context.Context, tenantID, docID, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (tenant_id, doc_id, note_key, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, doc_id, note_key)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, tenantID, docID, key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store note %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetNote(ctx context.Context, tenantID, docID, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM notes WHERE tenant_id = ? AND doc_id = ? AND note_key = ?
	`, tenantID, docID, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load note %s: %w", key, err)
	}
	return payload, true, nil
}
