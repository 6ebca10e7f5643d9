package discogs

import "context"

// Provider is an LLM chat backend. Implementations translate the
// provider-agnostic request (including tool definitions and prior tool
// results) to their wire format and back.
//
// Errors follow a convention the failover layer depends on: transport
// failures surface as-is (so IsConnectivity can classify them), non-2xx
// statuses as *ErrHTTP, and anything else as *ErrLLM.
type Provider interface {
	// Name identifies the backend ("ollama", "gemini", "groq") in logs.
	Name() string

	// Chat performs one completion. When req.Tools is non-empty the
	// response may carry ToolCalls instead of (or alongside) Content.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// EmbeddingProvider converts text to vectors for memory similarity search.
type EmbeddingProvider interface {
	Name() string

	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
