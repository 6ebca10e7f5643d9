// Package sqlite persists conversation checkpoints and long-term memory
// in a single SQLite database file. Embeddings are stored as JSON and
// ranked with in-process brute-force cosine similarity. Zero CGO
// required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for query timing.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store implements discogs.CheckpointStore and discogs.MemoryStore on a
// SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New opens (or creates) the database at dbPath.
func New(dbPath string, opts ...StoreOption) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dbPath, err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent threads.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: nopLogger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init creates the schema. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id  TEXT PRIMARY KEY,
			summary    TEXT NOT NULL DEFAULT '',
			messages   TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memory_facts (
			id         TEXT PRIMARY KEY,
			scope      TEXT NOT NULL,
			scope_id   TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			embedding  TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL,
			UNIQUE(scope, scope_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_facts_scope ON memory_facts(scope, scope_id)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlite: init schema: %w", err)
		}
	}
	s.logger.Debug("sqlite: schema ready", "duration", time.Since(start))
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
