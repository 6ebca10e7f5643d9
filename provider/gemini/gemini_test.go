package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bpafoshizle/discogs"
)

func testGemini(opts ...Option) *Gemini {
	return New("test-key", "test-model", opts...)
}

func TestBuildBody_SystemMessagesBecomeSystemInstruction(t *testing.T) {
	g := testGemini()
	body := g.buildBody(discogs.ChatRequest{Messages: []discogs.ChatMessage{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "system", Content: "Be concise."},
		{Role: "user", Content: "Hello"},
	}})

	si, ok := body["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatal("expected systemInstruction in body")
	}
	parts := si["parts"].([]map[string]any)
	if got := parts[0]["text"].(string); got != "You are a helpful assistant.\n\nBe concise." {
		t.Errorf("system text = %q", got)
	}

	contents := body["contents"].([]map[string]any)
	if len(contents) != 1 || contents[0]["role"] != "user" {
		t.Errorf("contents = %v, want single user entry", contents)
	}
}

func TestBuildBody_AssistantMapsToModel(t *testing.T) {
	g := testGemini()
	body := g.buildBody(discogs.ChatRequest{Messages: []discogs.ChatMessage{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
	}})
	contents := body["contents"].([]map[string]any)
	if contents[1]["role"] != "model" {
		t.Errorf("assistant role = %q, want %q", contents[1]["role"], "model")
	}
}

func TestBuildBody_ToolCallRoundTrip(t *testing.T) {
	g := testGemini()
	body := g.buildBody(discogs.ChatRequest{Messages: []discogs.ChatMessage{
		{Role: "user", Content: "look this up"},
		{Role: "assistant", ToolCalls: []discogs.ToolCall{
			{ID: "web_research", Name: "web_research", Args: []byte(`{"query":"go"}`)},
		}},
		{Role: "tool", Content: "result text", ToolCallID: "web_research"},
	}})

	contents := body["contents"].([]map[string]any)
	if len(contents) != 3 {
		t.Fatalf("contents = %d entries, want 3", len(contents))
	}
	model := contents[1]
	if model["role"] != "model" {
		t.Errorf("tool-call role = %q, want model", model["role"])
	}
	parts := model["parts"].([]map[string]any)
	fc := parts[0]["functionCall"].(map[string]any)
	if fc["name"] != "web_research" {
		t.Errorf("functionCall name = %v", fc["name"])
	}
	toolMsg := contents[2]
	if toolMsg["role"] != "user" {
		t.Errorf("functionResponse role = %q, want user", toolMsg["role"])
	}
}

func TestBuildBody_ImagesBecomeInlineData(t *testing.T) {
	g := testGemini()
	body := g.buildBody(discogs.ChatRequest{Messages: []discogs.ChatMessage{
		{Role: "user", Content: "what is this?", Images: []discogs.Image{
			{MIMEType: "image/png", Data: []byte{1, 2, 3}},
		}},
	}})
	contents := body["contents"].([]map[string]any)
	parts := contents[0]["parts"].([]map[string]any)
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want text + inlineData", len(parts))
	}
	inline := parts[1]["inlineData"].(map[string]any)
	if inline["mimeType"] != "image/png" {
		t.Errorf("mimeType = %v", inline["mimeType"])
	}
}

func TestBuildBody_ServerSideTools(t *testing.T) {
	g := testGemini(WithGoogleSearch(), WithURLContext())
	body := g.buildBody(discogs.ChatRequest{Messages: []discogs.ChatMessage{
		{Role: "user", Content: "q"},
	}})
	entries := body["tools"].([]map[string]any)
	if len(entries) != 2 {
		t.Fatalf("tool entries = %d, want 2", len(entries))
	}
	if _, ok := entries[0]["googleSearch"]; !ok {
		t.Error("googleSearch entry missing")
	}
	if _, ok := entries[1]["urlContext"]; !ok {
		t.Error("urlContext entry missing")
	}
}

func TestBuildBody_TemperatureDefaultAndOverride(t *testing.T) {
	g := testGemini(WithTemperature(0))
	body := g.buildBody(discogs.ChatRequest{Messages: []discogs.ChatMessage{{Role: "user", Content: "q"}}})
	gc := body["generationConfig"].(map[string]any)
	if gc["temperature"].(float64) != 0 {
		t.Errorf("temperature = %v, want provider default 0", gc["temperature"])
	}

	body = g.buildBody(discogs.ChatRequest{
		Messages:    []discogs.ChatMessage{{Role: "user", Content: "q"}},
		Temperature: discogs.Temp(0.7),
	})
	gc = body["generationConfig"].(map[string]any)
	if gc["temperature"].(float64) != 0.7 {
		t.Errorf("temperature = %v, want request override 0.7", gc["temperature"])
	}
}

func TestChat_ParsesTextAndToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{
						{"text": "calling tool"},
						{"functionCall": map[string]any{"name": "upsert_memory", "args": map[string]any{"scope": "user"}}},
					},
				},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	orig := baseURL
	defer func() { baseURL = orig }()
	baseURL = server.URL

	g := testGemini()
	resp, err := g.Chat(context.Background(), discogs.ChatRequest{
		Messages: []discogs.ChatMessage{{Role: "user", Content: "remember this"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "calling tool" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "upsert_memory" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChat_HTTPErrorWithRetryInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"7s"}]}}`))
	}))
	defer server.Close()

	orig := baseURL
	defer func() { baseURL = orig }()
	baseURL = server.URL

	g := testGemini()
	_, err := g.Chat(context.Background(), discogs.ChatRequest{
		Messages: []discogs.ChatMessage{{Role: "user", Content: "q"}},
	})
	httpErr, ok := err.(*discogs.ErrHTTP)
	if !ok {
		t.Fatalf("error type = %T, want *discogs.ErrHTTP", err)
	}
	if httpErr.Status != 429 {
		t.Errorf("status = %d", httpErr.Status)
	}
	if httpErr.RetryAfter.Seconds() != 7 {
		t.Errorf("retry after = %v, want 7s", httpErr.RetryAfter)
	}
}

func TestChat_ConnectivityErrorClassifies(t *testing.T) {
	orig := baseURL
	defer func() { baseURL = orig }()
	// Port 1 on localhost: nothing listens there.
	baseURL = "http://127.0.0.1:1"

	g := testGemini()
	_, err := g.Chat(context.Background(), discogs.ChatRequest{
		Messages: []discogs.ChatMessage{{Role: "user", Content: "q"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !discogs.IsConnectivity(err) {
		t.Errorf("IsConnectivity = false for %v", err)
	}
}
