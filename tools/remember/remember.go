// Package remember implements the upsert_memory tool: the model's write
// path into long-term memory. The tool must be bound to the caller's
// scope ids before each call; the model chooses the scope, never the id.
package remember

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bpafoshizle/discogs"
)

// Tool persists facts into a MemoryStore, embedding the value for later
// similarity search. It implements discogs.ScopedTool.
type Tool struct {
	store     discogs.MemoryStore
	embedding discogs.EmbeddingProvider
}

// New creates the memory tool. embedding may be nil; facts are then
// stored without vectors and surface only in scope-wide searches.
func New(store discogs.MemoryStore, embedding discogs.EmbeddingProvider) *Tool {
	return &Tool{store: store, embedding: embedding}
}

// Bind attaches the caller's scope ids for one call.
func (t *Tool) Bind(scope discogs.CallScope) discogs.Tool {
	return &boundTool{parent: t, scope: scope}
}

var _ discogs.ScopedTool = (*Tool)(nil)

type boundTool struct {
	parent *Tool
	scope  discogs.CallScope
}

func (b *boundTool) Definitions() []discogs.ToolDefinition {
	return []discogs.ToolDefinition{{
		Name: "upsert_memory",
		Description: "Saves a piece of information into long-term memory. " +
			"Use this to remember preferences, facts, or context that should " +
			"persist across different conversations. Choose the appropriate scope.",
		Parameters: json.RawMessage(`{"type":"object","properties":{"key":{"type":"string","description":"The key to store the memory under (e.g., 'favorite_language')."},"value":{"type":"string","description":"The information to store (e.g., 'Python')."},"scope":{"type":"string","enum":["user","guild","channel"],"description":"The scope of the memory. 'user' for private user facts, 'guild' for server-wide facts, 'channel' for channel-specific context."}},"required":["key","value"]}`),
	}}
}

func (b *boundTool) Execute(ctx context.Context, _ string, args json.RawMessage) (discogs.ToolResult, error) {
	if b.parent.store == nil {
		return discogs.ToolResult{Error: "Error: Memory store not configured."}, nil
	}

	var params struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return discogs.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if params.Scope == "" {
		params.Scope = discogs.ScopeUser
	}

	var scopeID string
	switch params.Scope {
	case discogs.ScopeUser:
		if b.scope.UserID == "" {
			return discogs.ToolResult{Error: "Error: User ID not available for user scope."}, nil
		}
		scopeID = b.scope.UserID
	case discogs.ScopeGuild:
		if b.scope.GuildID == "" {
			return discogs.ToolResult{Error: "Error: Guild ID not available for guild scope."}, nil
		}
		scopeID = b.scope.GuildID
	case discogs.ScopeChannel:
		if b.scope.ChannelID == "" {
			return discogs.ToolResult{Error: "Error: Channel ID not available for channel scope."}, nil
		}
		scopeID = b.scope.ChannelID
	default:
		return discogs.ToolResult{Error: fmt.Sprintf("Error: Invalid scope '%s'.", params.Scope)}, nil
	}

	fact := discogs.MemoryFact{
		Scope:     params.Scope,
		ScopeID:   scopeID,
		Key:       params.Key,
		Value:     params.Value,
		UpdatedAt: discogs.NowUnix(),
	}
	if b.parent.embedding != nil {
		// Embed key and value together so recall matches either phrasing.
		vecs, err := b.parent.embedding.Embed(ctx, []string{params.Key + ": " + params.Value})
		if err != nil {
			return discogs.ToolResult{Error: "Error: could not embed memory: " + err.Error()}, nil
		}
		fact.Embedding = vecs[0]
	}

	if err := b.parent.store.UpsertFact(ctx, fact); err != nil {
		return discogs.ToolResult{Error: "Error: could not store memory: " + err.Error()}, nil
	}
	return discogs.ToolResult{Content: fmt.Sprintf("Stored memory (%s): %s = %s", params.Scope, params.Key, params.Value)}, nil
}
