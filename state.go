package discogs

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory scopes. A fact is attached to exactly one scope id: the user who
// said it, the guild it applies to, or the channel it applies to.
const (
	ScopeUser    = "user"
	ScopeGuild   = "guild"
	ScopeChannel = "channel"
)

// Checkpoint is the durable state of one conversation thread: the live
// message window plus the rolling summary of everything compacted out of
// it.
type Checkpoint struct {
	ThreadID  string        `json:"thread_id"`
	Summary   string        `json:"summary,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	UpdatedAt int64         `json:"updated_at"`
}

// CheckpointStore persists conversation checkpoints keyed by thread id.
type CheckpointStore interface {
	// Load returns the checkpoint for a thread. An unknown thread yields
	// a zero checkpoint with the id filled in, not an error.
	Load(ctx context.Context, threadID string) (Checkpoint, error)

	// Save replaces the thread's checkpoint.
	Save(ctx context.Context, cp Checkpoint) error

	// Init creates backing schema. Idempotent.
	Init(ctx context.Context) error

	Close() error
}

// MemoryFact is one long-term memory entry.
type MemoryFact struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	ScopeID   string    `json:"scope_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Embedding []float32 `json:"-"`
	UpdatedAt int64     `json:"updated_at"`
}

// ScoredFact pairs a fact with its similarity to a query embedding.
type ScoredFact struct {
	Fact  MemoryFact
	Score float64
}

// MemoryStore persists long-term facts and retrieves them by embedding
// similarity within one scope.
type MemoryStore interface {
	// UpsertFact inserts the fact, replacing any existing fact with the
	// same (scope, scope_id, key).
	UpsertFact(ctx context.Context, fact MemoryFact) error

	// SearchFacts returns up to limit facts in (scope, scopeID) ordered
	// by cosine similarity to query, highest first.
	SearchFacts(ctx context.Context, scope, scopeID string, query []float32, limit int) ([]ScoredFact, error)

	// Init creates backing schema. Idempotent.
	Init(ctx context.Context) error

	Close() error
}

// CosineSimilarity computes similarity between two vectors. Returns 0 for
// mismatched lengths or zero-magnitude inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// --- In-process fallback stores ---

// memoryCheckpoints is the degraded-mode CheckpointStore: history lives
// for the lifetime of the process and vanishes on restart.
type memoryCheckpoints struct {
	mu   sync.RWMutex
	byID map[string]Checkpoint
}

// NewMemoryCheckpoints returns an in-process CheckpointStore, used when no
// persistent store is configured.
func NewMemoryCheckpoints() CheckpointStore {
	return &memoryCheckpoints{byID: make(map[string]Checkpoint)}
}

func (s *memoryCheckpoints) Load(_ context.Context, threadID string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cp, ok := s.byID[threadID]; ok {
		cloned := cp
		cloned.Messages = append([]ChatMessage(nil), cp.Messages...)
		return cloned, nil
	}
	return Checkpoint{ThreadID: threadID}, nil
}

func (s *memoryCheckpoints) Save(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.Messages = append([]ChatMessage(nil), cp.Messages...)
	s.byID[cp.ThreadID] = cp
	return nil
}

func (s *memoryCheckpoints) Init(context.Context) error { return nil }
func (s *memoryCheckpoints) Close() error               { return nil }

// memoryFacts is the degraded-mode MemoryStore.
type memoryFacts struct {
	mu    sync.RWMutex
	facts []MemoryFact
}

// NewMemoryFacts returns an in-process MemoryStore, used when no
// persistent store is configured.
func NewMemoryFacts() MemoryStore {
	return &memoryFacts{}
}

func (s *memoryFacts) UpsertFact(_ context.Context, fact MemoryFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fact.ID == "" {
		fact.ID = NewID()
	}
	if fact.UpdatedAt == 0 {
		fact.UpdatedAt = NowUnix()
	}
	for i, f := range s.facts {
		if f.Scope == fact.Scope && f.ScopeID == fact.ScopeID && f.Key == fact.Key {
			fact.ID = f.ID
			s.facts[i] = fact
			return nil
		}
	}
	s.facts = append(s.facts, fact)
	return nil
}

func (s *memoryFacts) SearchFacts(_ context.Context, scope, scopeID string, query []float32, limit int) ([]ScoredFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var scored []ScoredFact
	for _, f := range s.facts {
		if f.Scope != scope || f.ScopeID != scopeID {
			continue
		}
		scored = append(scored, ScoredFact{Fact: f, Score: CosineSimilarity(query, f.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *memoryFacts) Init(context.Context) error { return nil }
func (s *memoryFacts) Close() error               { return nil }
