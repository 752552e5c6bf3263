package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vecshard/internal/models"
	"github.com/hyperjump/vecshard/internal/vector"
)

// SQLiteGateway implements Gateway using SQLite.
type SQLiteGateway struct {
	db *sql.DB
}

// NewSQLiteGateway opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteGateway(dbPath string) (*SQLiteGateway, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteGateway{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vector_entries (
		project_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		id TEXT NOT NULL,
		vector BLOB,
		metadata TEXT,
		shard_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (project_id, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_vector_entries_id ON vector_entries(id);
	CREATE INDEX IF NOT EXISTS idx_vector_entries_shard ON vector_entries(shard_id);
	`
	_, err := db.Exec(schema)
	return err
}

const upsertSQL = `
	INSERT INTO vector_entries (project_id, fingerprint, id, vector, metadata, shard_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(project_id, fingerprint) DO UPDATE SET
		vector = excluded.vector,
		metadata = excluded.metadata,
		shard_id = excluded.shard_id,
		updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertOne(ctx context.Context, ex execer, e *models.VectorEntry, now time.Time) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err = ex.ExecContext(ctx, upsertSQL,
		e.ProjectID, e.Fingerprint, e.ID, vector.EncodeVector(e.Vector), string(metadataJSON), e.ShardID, created, now,
	)
	return err
}

// Upsert inserts or replaces a single entry.
func (s *SQLiteGateway) Upsert(ctx context.Context, entry *models.VectorEntry) error {
	return upsertOne(ctx, s.db, entry, time.Now())
}

// UpsertBatch upserts all entries in one transaction.
func (s *SQLiteGateway) UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, e := range entries {
		if err := upsertOne(ctx, tx, e, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes one entry.
func (s *SQLiteGateway) Delete(ctx context.Context, projectID, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vector_entries WHERE project_id = ? AND fingerprint = ?`, projectID, fingerprint)
	return err
}

// DeleteAll removes all entries of a project.
func (s *SQLiteGateway) DeleteAll(ctx context.Context, projectID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM vector_entries WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// LoadAll returns every entry of a project ordered by fingerprint.
func (s *SQLiteGateway) LoadAll(ctx context.Context, projectID string) ([]*models.VectorEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, fingerprint, vector, metadata, shard_id, created_at, updated_at
		 FROM vector_entries WHERE project_id = ? ORDER BY fingerprint`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.VectorEntry
	for rows.Next() {
		var e models.VectorEntry
		var blob []byte
		var metadataJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Fingerprint, &blob, &metadataJSON, &e.ShardID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if e.Vector, err = vector.DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ListProjects returns all project IDs with stored entries.
func (s *SQLiteGateway) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT project_id FROM vector_entries ORDER BY project_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CountEntries returns the total number of stored entries.
func (s *SQLiteGateway) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_entries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteGateway) Close() error {
	return s.db.Close()
}
