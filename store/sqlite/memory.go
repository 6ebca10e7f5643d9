package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bpafoshizle/discogs"
)

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
	emb := fact.Embedding
	if emb == nil {
		emb = []float32{}
	}
	rawEmb, err := json.Marshal(emb)
	if err != nil {
		return fmt.Errorf("sqlite: encode embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory_facts (id, scope, scope_id, key, value, embedding, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scope, scope_id, key) DO UPDATE SET
		   value = excluded.value,
		   embedding = excluded.embedding,
		   updated_at = excluded.updated_at`,
		fact.ID, fact.Scope, fact.ScopeID, fact.Key, fact.Value, string(rawEmb), fact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert fact %s/%s/%s: %w", fact.Scope, fact.ScopeID, fact.Key, err)
	}

	s.logger.Debug("sqlite: upserted fact",
		"scope", fact.Scope, "key", fact.Key, "duration", time.Since(start))
	return nil
}

// SearchFacts scans the scope and ranks candidates by cosine similarity
// in process. Fine for the fact counts a chat bot accumulates; a server
// with millions of rows wants the postgres store instead.
func (s *Store) SearchFacts(ctx context.Context, scope, scopeID string, query []float32, limit int) ([]discogs.ScoredFact, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, scope_id, key, value, embedding, updated_at
		 FROM memory_facts WHERE scope = ? AND scope_id = ?`,
		scope, scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search facts %s/%s: %w", scope, scopeID, err)
	}
	defer rows.Close()

	var scored []discogs.ScoredFact
	for rows.Next() {
		var (
			f      discogs.MemoryFact
			rawEmb string
		)
		if err := rows.Scan(&f.ID, &f.Scope, &f.ScopeID, &f.Key, &f.Value, &rawEmb, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan fact: %w", err)
		}
		if err := json.Unmarshal([]byte(rawEmb), &f.Embedding); err != nil {
			return nil, fmt.Errorf("sqlite: decode embedding for %s: %w", f.ID, err)
		}
		scored = append(scored, discogs.ScoredFact{
			Fact:  f,
			Score: discogs.CosineSimilarity(query, f.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search facts %s/%s: %w", scope, scopeID, err)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	s.logger.Debug("sqlite: searched facts",
		"scope", scope, "candidates", len(scored), "duration", time.Since(start))
	return scored, nil
}

var _ discogs.MemoryStore = (*Store)(nil)
