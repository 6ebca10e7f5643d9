// Package xresearch implements the x_research tool: research on X
// (formerly Twitter) through Grok, which grounds its answers with its
// own live X and web search. Assembly wires it to an xAI provider; any
// provider that does its own grounding works.
package xresearch

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/bpafoshizle/discogs"
)

// statusURL spots direct post links; those get rephrased so the model
// summarizes the post instead of answering the bare URL.
var statusURL = regexp.MustCompile(`(?:twitter\.com|x\.com)/\w+/status/\d+`)

// Tool performs Grok-grounded research over X content.
type Tool struct {
	provider discogs.Provider
}

// New creates the tool around a search-grounded provider.
func New(provider discogs.Provider) *Tool {
	return &Tool{provider: provider}
}

func (t *Tool) Definitions() []discogs.ToolDefinition {
	return []discogs.ToolDefinition{{
		Name: "x_research",
		Description: "Researches topics, trends, or specific posts on X (formerly Twitter) using Grok. " +
			"Useful for summaries, sentiment analysis, and real-time information gathering from X.",
		Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The query, topic, or X post URL/ID to research or summarize using X (formerly Twitter) data."}},"required":["query"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (discogs.ToolResult, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return discogs.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if params.Query == "" {
		return discogs.ToolResult{Error: "Error: query is required."}, nil
	}

	query := params.Query
	if statusURL.MatchString(query) {
		query = "Please research and provide a concise summary or TLDR of this X post: " + query
	}

	resp, err := t.provider.Chat(ctx, discogs.ChatRequest{
		Messages: []discogs.ChatMessage{discogs.UserMessage(query)},
	})
	if err != nil {
		return discogs.ToolResult{Error: "Error performing X research: " + err.Error()}, nil
	}
	if resp.Content == "" {
		return discogs.ToolResult{Error: "Error: Could not extract assistant response from Xai."}, nil
	}
	return discogs.ToolResult{Content: resp.Content}, nil
}

var _ discogs.Tool = (*Tool)(nil)
