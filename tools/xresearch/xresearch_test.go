package xresearch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bpafoshizle/discogs"
)

type recordingProvider struct {
	req  discogs.ChatRequest
	resp discogs.ChatResponse
	err  error
}

func (r *recordingProvider) Name() string { return "record" }
func (r *recordingProvider) Chat(_ context.Context, req discogs.ChatRequest) (discogs.ChatResponse, error) {
	r.req = req
	return r.resp, r.err
}

func TestExecute_TopicQueryPassesThrough(t *testing.T) {
	rec := &recordingProvider{resp: discogs.ChatResponse{Content: "the sentiment report"}}
	tool := New(rec)

	res, err := tool.Execute(context.Background(), "x_research", json.RawMessage(`{"query":"sentiment around the new album"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "the sentiment report" {
		t.Errorf("content = %q", res.Content)
	}
	if got := rec.req.Messages[0].Content; got != "sentiment around the new album" {
		t.Errorf("prompt = %q, topic queries must pass through unchanged", got)
	}
}

func TestExecute_PostURLIsRephrasedAsSummaryRequest(t *testing.T) {
	rec := &recordingProvider{resp: discogs.ChatResponse{Content: "tldr"}}
	tool := New(rec)

	args, _ := json.Marshal(map[string]any{"query": "https://x.com/gopher/status/1234567890"})
	if _, err := tool.Execute(context.Background(), "x_research", args); err != nil {
		t.Fatal(err)
	}

	prompt := rec.req.Messages[0].Content
	if !strings.HasPrefix(prompt, "Please research and provide a concise summary or TLDR of this X post: ") {
		t.Errorf("post URL not rephrased:\n%s", prompt)
	}
	if !strings.Contains(prompt, "status/1234567890") {
		t.Errorf("prompt lost the URL:\n%s", prompt)
	}
}

func TestExecute_ProviderFailureIsResultString(t *testing.T) {
	rec := &recordingProvider{err: &discogs.ErrHTTP{Status: 500, Body: "boom"}}
	tool := New(rec)

	res, err := tool.Execute(context.Background(), "x_research", json.RawMessage(`{"query":"q"}`))
	if err != nil {
		t.Fatalf("provider failure must surface as result string, got %v", err)
	}
	if !strings.HasPrefix(res.Error, "Error performing X research: ") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecute_EmptyResponse(t *testing.T) {
	rec := &recordingProvider{}
	tool := New(rec)

	res, _ := tool.Execute(context.Background(), "x_research", json.RawMessage(`{"query":"q"}`))
	if res.Error != "Error: Could not extract assistant response from Xai." {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecute_EmptyQuery(t *testing.T) {
	tool := New(&recordingProvider{})
	res, _ := tool.Execute(context.Background(), "x_research", json.RawMessage(`{}`))
	if res.Error != "Error: query is required." {
		t.Errorf("error = %q", res.Error)
	}
}
