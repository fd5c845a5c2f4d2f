// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists applied conversion results in SQLite so a
// session's preview timeline can be inspected and exported.
package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"

	"github.com/pdiddy/texpreview/pkg/types"
)

const dbFile = "history.db"

// timeLayout is fixed-width so settled_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded conversion.
type Entry struct {
	ID         int64         `json:"id" yaml:"id"`
	Session    string        `json:"session" yaml:"session"`
	Seq        uint64        `json:"seq" yaml:"seq"`
	OK         bool          `json:"ok" yaml:"ok"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	ArtifactID string        `json:"artifact_id,omitempty" yaml:"artifact_id,omitempty"`
	Bytes      int           `json:"bytes" yaml:"bytes"`
	Digest     string        `json:"source_digest" yaml:"source_digest"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	SettledAt  time.Time     `json:"settled_at" yaml:"settled_at"`
}

// Store manages the history SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates dir/history.db and its schema.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		dir:        cfg.Dir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			message TEXT,
			artifact_id TEXT,
			bytes INTEGER NOT NULL DEFAULT 0,
			source_digest TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			settled_at TEXT NOT NULL,
			UNIQUE(session, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_settled_at ON conversions(settled_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Digest returns the hex BLAKE3 digest of a draft.
func Digest(source string) string {
	sum := blake3.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Record stores r under session. Recording the same session and sequence
// number twice keeps the first entry.
func (s *Store) Record(ctx context.Context, session string, r types.ConversionResult) error {
	var artifactID string
	var size int
	if r.Artifact != nil {
		artifactID = r.Artifact.ID
		size = len(r.Artifact.Data)
	}

	settled := r.SettledAt
	if settled.IsZero() {
		settled = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversions
			(session, seq, ok, message, artifact_id, bytes, source_digest, duration_ms, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, r.Seq, r.OK(), r.Message, artifactID, size, Digest(r.Source),
		r.Duration.Milliseconds(), settled.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording conversion %d: %w", r.Seq, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// uses the configured maximum.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	return s.query(ctx, limit)
}

// All returns every entry, newest first.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	// SQLite treats a negative LIMIT as unbounded.
	return s.query(ctx, -1)
}

func (s *Store) query(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, seq, ok, COALESCE(message, ''), COALESCE(artifact_id, ''),
			bytes, source_digest, duration_ms, settled_at
		FROM conversions
		ORDER BY settled_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		var settled string
		if err := rows.Scan(&e.ID, &e.Session, &e.Seq, &e.OK, &e.Message, &e.ArtifactID,
			&e.Bytes, &e.Digest, &durationMS, &settled); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if e.SettledAt, err = time.Parse(timeLayout, settled); err != nil {
			return nil, fmt.Errorf("parsing settled_at %q: %w", settled, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
