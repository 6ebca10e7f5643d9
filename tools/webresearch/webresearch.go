// Package webresearch implements the web_research tool: a single
// search-grounded model call. Assembly wires it to a Gemini provider
// with the server-side Google Search tool enabled; any provider that
// does its own grounding works.
package webresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bpafoshizle/discogs"
)

// instructions is the research prompt. The current date matters: models
// otherwise anchor "latest" to their training cutoff.
const instructions = `Conduct a targeted web search to gather the most recent, credible information on "%s" and synthesize it into a verifiable answer.

Instructions:
- The current date is %s.
- Consolidate key findings while tracking the source of each specific piece of information.
- Only include information found in the search results; don't make anything up.

Research Topic:
%s`

// Tool performs grounded web research.
type Tool struct {
	provider discogs.Provider
	now      func() time.Time
}

// Option configures the tool.
type Option func(*Tool)

// WithClock overrides the date source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tool) { t.now = now }
}

// New creates the tool around a search-grounded provider.
func New(provider discogs.Provider, opts ...Option) *Tool {
	t := &Tool{provider: provider, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Definitions() []discogs.ToolDefinition {
	return []discogs.ToolDefinition{{
		Name:        "web_research",
		Description: "Performs web research using live web search combined with a language model. Use for current events and anything beyond your knowledge cutoff.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The search query for the web research."}},"required":["query"]}`),
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

	date := t.now().Format("January 02, 2006")
	prompt := fmt.Sprintf(instructions, params.Query, date, params.Query)

	resp, err := t.provider.Chat(ctx, discogs.ChatRequest{
		Messages:    []discogs.ChatMessage{discogs.UserMessage(prompt)},
		Temperature: discogs.Temp(0),
	})
	if err != nil {
		return discogs.ToolResult{Error: "Error performing web research: " + err.Error()}, nil
	}
	return discogs.ToolResult{Content: resp.Content}, nil
}

var _ discogs.Tool = (*Tool)(nil)
