package discogs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// AIError is the terminal reply: whatever goes wrong past the failover
// budget, the frontend receives this exact string and posts it.
const AIError = "AI Error"

// CallRequest is one addressed message handed over by the frontend.
type CallRequest struct {
	// Input is the user's message text, mention stripped.
	Input string

	// RepliedTo carries the content of the message the user replied to,
	// when the platform reports one.
	RepliedTo string

	// Images are attachments already downloaded by the frontend.
	Images []Image

	// ThreadID keys conversation state: typically the channel or DM id.
	ThreadID string

	// UserID is required for memory; GuildID and ChannelID widen the
	// memory scopes available to this call.
	UserID    string
	GuildID   string
	ChannelID string
}

// CallScope is the identity context a memory tool binds to for one call.
// Scope ids come from the platform event, never from the model.
type CallScope struct {
	UserID    string
	GuildID   string
	ChannelID string
}

// ScopedTool is a tool factory that must be bound to the caller's scope
// before each call (the memory upsert tool).
type ScopedTool interface {
	Bind(scope CallScope) Tool
}

// Assistant is the request façade over the whole AI core.
type Assistant struct {
	ring        *ProviderRing
	checkpoints CheckpointStore
	memories    MemoryStore
	embedder    EmbeddingProvider
	tools       []Tool
	memoryTool  ScopedTool

	systemPrompt  string
	temperature   *float64
	maxTokens     int
	maxIterations int
	logger        *slog.Logger

	locks keyedMutex
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithSystemPrompt sets the operator persona prepended to every prompt.
func WithSystemPrompt(p string) AssistantOption {
	return func(a *Assistant) { a.systemPrompt = p }
}

// WithStores sets persistent conversation and memory stores. Defaults are
// in-process stores that vanish on restart.
func WithStores(cp CheckpointStore, mem MemoryStore) AssistantOption {
	return func(a *Assistant) {
		if cp != nil {
			a.checkpoints = cp
		}
		if mem != nil {
			a.memories = mem
		}
	}
}

// WithEmbedder sets the embedding provider for memory similarity search.
// Without one, memory recall is skipped (upserts still work through the
// store's own embedding handling, if any).
func WithEmbedder(e EmbeddingProvider) AssistantOption {
	return func(a *Assistant) { a.embedder = e }
}

// WithTools registers tools available on every call.
func WithTools(tools ...Tool) AssistantOption {
	return func(a *Assistant) { a.tools = append(a.tools, tools...) }
}

// WithMemoryTool registers the scope-bound memory upsert tool.
func WithMemoryTool(t ScopedTool) AssistantOption {
	return func(a *Assistant) { a.memoryTool = t }
}

// WithTemperature sets the sampling temperature for every provider call.
func WithTemperature(t float64) AssistantOption {
	return func(a *Assistant) { a.temperature = &t }
}

// WithMaxTokens caps completion length (0 = provider default).
func WithMaxTokens(n int) AssistantOption {
	return func(a *Assistant) { a.maxTokens = n }
}

// WithMaxToolIterations bounds the tool loop per call (default 8).
func WithMaxToolIterations(n int) AssistantOption {
	return func(a *Assistant) { a.maxIterations = n }
}

// WithLogger sets the structured logger (default: discard).
func WithLogger(l *slog.Logger) AssistantOption {
	return func(a *Assistant) { a.logger = l }
}

// NewAssistant builds the façade over a provider ring. The ring carries
// the failover order; see internal/app for credential-driven assembly.
func NewAssistant(ring *ProviderRing, opts ...AssistantOption) (*Assistant, error) {
	if ring == nil {
		return nil, &ErrConfig{Reason: "provider ring is required"}
	}
	a := &Assistant{
		ring:          ring,
		checkpoints:   NewMemoryCheckpoints(),
		memories:      NewMemoryFacts(),
		maxIterations: defaultMaxIterations,
		logger:        nopLogger,
		locks:         keyedMutex{locks: make(map[string]*sync.Mutex)},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = nopLogger
	}
	return a, nil
}

// Call serves one addressed message and always returns a postable string.
//
// Failure policy: a connectivity-class provider failure rotates the ring
// once and retries the whole turn against the next provider. A second
// failure of any kind, or a first failure that is not connectivity-class
// (HTTP status errors, store failures, tool infrastructure errors), is
// terminal and yields the literal "AI Error".
func (a *Assistant) Call(ctx context.Context, req CallRequest) string {
	unlock := a.locks.lock(req.ThreadID)
	defer unlock()

	provider := a.ring.Current()
	reply, err := a.converse(ctx, provider, req)
	if err == nil {
		return reply
	}

	if isProviderConnectivity(err) {
		next := a.ring.Rotate()
		a.logger.Warn("provider unreachable, rotating",
			"failed", provider.Name(),
			"next", next.Name(),
			"thread", req.ThreadID,
			"error", err)
		reply, err = a.converse(ctx, next, req)
		if err == nil {
			return reply
		}
	}

	a.logger.Error("assistant call failed",
		"provider", a.ring.Current().Name(),
		"thread", req.ThreadID,
		"error", err)
	return AIError
}

// Providers reports the current failover order, head first.
func (a *Assistant) Providers() []string { return a.ring.Names() }

// isProviderConnectivity reports whether err is a connectivity failure of
// the provider itself. Store and tool errors never trigger rotation even
// when they are network errors underneath.
func isProviderConnectivity(err error) bool {
	var pe *providerError
	if !errors.As(err, &pe) {
		return false
	}
	return IsConnectivity(pe.err)
}

// keyedMutex serializes calls per thread key so concurrent messages in
// one channel cannot interleave checkpoint read-modify-write cycles.
// Entries are never removed; the map is bounded by the number of distinct
// threads the process has seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
