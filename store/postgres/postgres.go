// Package postgres persists conversation checkpoints and long-term
// memory in PostgreSQL, using pgvector for embedding similarity search.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bpafoshizle/discogs"
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
// PostgreSQL pool. The pool is owned by the caller; Close releases it.
type Store struct {
	pool   *pgxpool.Pool
	dims   int
	logger *slog.Logger
}

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New wraps an existing pool. dims is the embedding dimensionality and
// must match the configured embedding provider.
func New(pool *pgxpool.Pool, dims int, opts ...StoreOption) *Store {
	s := &Store{pool: pool, dims: dims, logger: nopLogger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the extension, tables and indexes. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id  TEXT PRIMARY KEY,
			summary    TEXT NOT NULL DEFAULT '',
			messages   JSONB NOT NULL DEFAULT '[]',
			updated_at BIGINT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_facts (
			id         TEXT PRIMARY KEY,
			scope      TEXT NOT NULL,
			scope_id   TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			embedding  vector(%d),
			updated_at BIGINT NOT NULL,
			UNIQUE(scope, scope_id, key)
		)`, s.dims),
		`CREATE INDEX IF NOT EXISTS idx_memory_facts_scope ON memory_facts(scope, scope_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_facts_embedding
			ON memory_facts USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	s.logger.Debug("postgres: schema ready", "duration", time.Since(start))
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Load returns the checkpoint for a thread. An unknown thread yields a
// zero checkpoint with the id filled in.
func (s *Store) Load(ctx context.Context, threadID string) (discogs.Checkpoint, error) {
	start := time.Now()

	var (
		cp      = discogs.Checkpoint{ThreadID: threadID}
		rawMsgs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT summary, messages, updated_at FROM checkpoints WHERE thread_id = $1`,
		threadID,
	).Scan(&cp.Summary, &rawMsgs, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return cp, nil
	}
	if err != nil {
		return discogs.Checkpoint{}, fmt.Errorf("postgres: load checkpoint %s: %w", threadID, err)
	}
	if err := json.Unmarshal(rawMsgs, &cp.Messages); err != nil {
		return discogs.Checkpoint{}, fmt.Errorf("postgres: decode checkpoint %s: %w", threadID, err)
	}

	s.logger.Debug("postgres: loaded checkpoint",
		"thread_id", threadID, "messages", len(cp.Messages), "duration", time.Since(start))
	return cp, nil
}

// Save replaces the thread's checkpoint.
func (s *Store) Save(ctx context.Context, cp discogs.Checkpoint) error {
	start := time.Now()

	if cp.UpdatedAt == 0 {
		cp.UpdatedAt = discogs.NowUnix()
	}
	msgs := cp.Messages
	if msgs == nil {
		msgs = []discogs.ChatMessage{}
	}
	rawMsgs, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("postgres: encode checkpoint %s: %w", cp.ThreadID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO checkpoints (thread_id, summary, messages, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (thread_id) DO UPDATE SET
		   summary = EXCLUDED.summary,
		   messages = EXCLUDED.messages,
		   updated_at = EXCLUDED.updated_at`,
		cp.ThreadID, cp.Summary, rawMsgs, cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save checkpoint %s: %w", cp.ThreadID, err)
	}

	s.logger.Debug("postgres: saved checkpoint",
		"thread_id", cp.ThreadID, "messages", len(cp.Messages), "duration", time.Since(start))
	return nil
}

var _ discogs.CheckpointStore = (*Store)(nil)
