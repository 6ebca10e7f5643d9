package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
)

// stubProvider returns pre-configured results in order. Shared across
// ring, retry, and assistant tests.
type stubProvider struct {
	mu      sync.Mutex
	name    string
	calls   int
	reqs    []ChatRequest
	results []stubResult
}

type stubResult struct {
	resp ChatResponse
	err  error
}

func (s *stubProvider) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.reqs = append(s.reqs, req)
	if i < len(s.results) {
		return s.results[i].resp, s.results[i].err
	}
	return ChatResponse{Content: "ok"}, nil
}

var _ Provider = (*stubProvider)(nil)

// connErr fabricates a connectivity-class failure (refused dial).
func connErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

// stubEmbedder returns a constant unit vector for every input.
type stubEmbedder struct{ dims int }

func (s stubEmbedder) Name() string { return "stub-embed" }

func (s stubEmbedder) Dimensions() int {
	if s.dims == 0 {
		return 3
	}
	return s.dims
}

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, s.Dimensions())
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

var _ EmbeddingProvider = stubEmbedder{}

// failingCheckpoints fails every Load, for terminal-error paths.
type failingCheckpoints struct{ err error }

func (f failingCheckpoints) Load(context.Context, string) (Checkpoint, error) {
	return Checkpoint{}, f.err
}
func (f failingCheckpoints) Save(context.Context, Checkpoint) error { return f.err }
func (f failingCheckpoints) Init(context.Context) error             { return nil }
func (f failingCheckpoints) Close() error                           { return nil }

// echoTool answers any registered name with a fixed payload.
type echoTool struct {
	defs  []ToolDefinition
	calls []string
}

func (e *echoTool) Definitions() []ToolDefinition { return e.defs }

func (e *echoTool) Execute(_ context.Context, name string, _ json.RawMessage) (ToolResult, error) {
	e.calls = append(e.calls, name)
	return ToolResult{Content: "echo from " + name}, nil
}
