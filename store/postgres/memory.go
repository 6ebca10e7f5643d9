package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bpafoshizle/discogs"
)

// serializeEmbedding renders a vector in pgvector's literal form:
// [0.1,0.2,...].
func serializeEmbedding(emb []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range emb {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// UpsertFact inserts the fact, replacing any existing fact with the same
// (scope, scope_id, key).
func (s *Store) UpsertFact(ctx context.Context, fact discogs.MemoryFact) error {
	start := time.Now()

	if fact.ID == "" {
		fact.ID = discogs.NewID()
	}
	if fact.UpdatedAt == 0 {
		fact.UpdatedAt = discogs.NowUnix()
	}

	var embedding any
	if len(fact.Embedding) > 0 {
		embedding = serializeEmbedding(fact.Embedding)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_facts (id, scope, scope_id, key, value, embedding, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
		 ON CONFLICT (scope, scope_id, key) DO UPDATE SET
		   value = EXCLUDED.value,
		   embedding = EXCLUDED.embedding,
		   updated_at = EXCLUDED.updated_at`,
		fact.ID, fact.Scope, fact.ScopeID, fact.Key, fact.Value, embedding, fact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert fact %s/%s/%s: %w", fact.Scope, fact.ScopeID, fact.Key, err)
	}

	s.logger.Debug("postgres: upserted fact",
		"scope", fact.Scope, "key", fact.Key, "duration", time.Since(start))
	return nil
}

// SearchFacts ranks the scope's facts by cosine similarity to query,
// computed in the database against the HNSW index.
func (s *Store) SearchFacts(ctx context.Context, scope, scopeID string, query []float32, limit int) ([]discogs.ScoredFact, error) {
	start := time.Now()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, scope, scope_id, key, value, updated_at,
		        1 - (embedding <=> $1::vector) AS score
		 FROM memory_facts
		 WHERE scope = $2 AND scope_id = $3 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector
		 LIMIT $4`,
		serializeEmbedding(query), scope, scopeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: search facts %s/%s: %w", scope, scopeID, err)
	}
	defer rows.Close()

	var scored []discogs.ScoredFact
	for rows.Next() {
		var sf discogs.ScoredFact
		if err := rows.Scan(&sf.Fact.ID, &sf.Fact.Scope, &sf.Fact.ScopeID,
			&sf.Fact.Key, &sf.Fact.Value, &sf.Fact.UpdatedAt, &sf.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan fact: %w", err)
		}
		scored = append(scored, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search facts %s/%s: %w", scope, scopeID, err)
	}

	s.logger.Debug("postgres: searched facts",
		"scope", scope, "results", len(scored), "duration", time.Since(start))
	return scored, nil
}

var _ discogs.MemoryStore = (*Store)(nil)
