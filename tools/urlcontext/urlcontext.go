// Package urlcontext implements the url_context tool: fetch the given
// pages, extract their readable text, and answer a question across them
// with one model call. Unlike webresearch this works with any provider,
// so the answer survives a failover away from Gemini.
package urlcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/bpafoshizle/discogs"
)

const (
	fetchTimeout   = 10 * time.Second
	maxBodyBytes   = 512 << 10 // 512KB per page
	maxExtractRune = 8000      // per-page text budget in the prompt
)

// Tool answers questions over the content of caller-supplied URLs.
type Tool struct {
	provider   discogs.Provider
	httpClient *http.Client
}

// New creates the tool around any chat provider.
func New(provider discogs.Provider) *Tool {
	return &Tool{
		provider:   provider,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

func (t *Tool) Definitions() []discogs.ToolDefinition {
	return []discogs.ToolDefinition{{
		Name:        "url_context",
		Description: "Performs research on a given topic using the content of the provided URLs as context.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"urls":{"type":"array","items":{"type":"string"},"description":"A list of URLs to use as context for the research."},"query":{"type":"string","description":"The research query or topic."}},"required":["urls","query"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (discogs.ToolResult, error) {
	var params struct {
		URLs  []string `json:"urls"`
		Query string   `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return discogs.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if len(params.URLs) == 0 {
		return discogs.ToolResult{Error: "Error: at least one URL is required."}, nil
	}

	pages := t.fetchAll(ctx, params.URLs)

	var prompt strings.Builder
	fmt.Fprintf(&prompt,
		"Compare the information from the following URLs: %s to answer the question: %s\n",
		strings.Join(params.URLs, " "), params.Query)
	prompt.WriteString("\nPage contents:\n")
	for _, p := range pages {
		if p.err != nil {
			fmt.Fprintf(&prompt, "\n--- %s ---\n(could not fetch: %s)\n", p.url, p.err)
			continue
		}
		fmt.Fprintf(&prompt, "\n--- %s ---\n%s\n", p.url, p.text)
	}

	resp, err := t.provider.Chat(ctx, discogs.ChatRequest{
		Messages:    []discogs.ChatMessage{discogs.UserMessage(prompt.String())},
		Temperature: discogs.Temp(0),
	})
	if err != nil {
		return discogs.ToolResult{Error: "Error performing URL research: " + err.Error()}, nil
	}
	return discogs.ToolResult{Content: resp.Content}, nil
}

type page struct {
	url  string
	text string
	err  error
}

// fetchAll retrieves pages concurrently, preserving input order.
func (t *Tool) fetchAll(ctx context.Context, urls []string) []page {
	out := make([]page, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		out[i] = page{url: u}
		wg.Add(1)
		go func(idx int, raw string) {
			defer wg.Done()
			text, err := t.fetchOne(ctx, raw)
			out[idx].text, out[idx].err = text, err
		}(i, u)
	}
	wg.Wait()
	return out
}

func (t *Tool) fetchOne(ctx context.Context, raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DiscogsBot/1.0)")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if runes := []rune(text); len(runes) > maxExtractRune {
		text = string(runes[:maxExtractRune])
	}
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

var _ discogs.Tool = (*Tool)(nil)
