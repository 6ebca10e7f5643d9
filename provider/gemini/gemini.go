// Package gemini implements the Google Gemini chat and embedding
// providers over the generativelanguage REST API. The chat provider can
// additionally enable Gemini's server-side tools (Google Search
// grounding, URL context), which the research tools build on.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bpafoshizle/discogs"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini implements discogs.Provider for Google Gemini models.
type Gemini struct {
	apiKey     string
	model      string
	httpClient *http.Client

	temperature  *float64
	topP         *float64
	maxTokens    int
	googleSearch bool
	urlContext   bool
}

// Option configures a Gemini provider.
type Option func(*Gemini)

// WithTemperature sets a default sampling temperature applied when the
// request does not carry one.
func WithTemperature(t float64) Option {
	return func(g *Gemini) { g.temperature = &t }
}

// WithTopP sets nucleus sampling.
func WithTopP(p float64) Option {
	return func(g *Gemini) { g.topP = &p }
}

// WithMaxTokens sets a default completion cap.
func WithMaxTokens(n int) Option {
	return func(g *Gemini) { g.maxTokens = n }
}

// WithGoogleSearch enables the server-side Google Search grounding tool.
// Gemini rejects requests mixing server-side tools with function
// declarations, so use a dedicated instance for grounded calls.
func WithGoogleSearch() Option {
	return func(g *Gemini) { g.googleSearch = true }
}

// WithURLContext enables the server-side URL context tool.
func WithURLContext() Option {
	return func(g *Gemini) { g.urlContext = true }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gemini) { g.httpClient = c }
}

// New creates a Gemini chat provider.
func New(apiKey, model string, opts ...Option) *Gemini {
	g := &Gemini{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// Chat sends a generateContent request and returns the parsed response.
func (g *Gemini) Chat(ctx context.Context, req discogs.ChatRequest) (discogs.ChatResponse, error) {
	body := g.buildBody(req)
	return g.doGenerate(ctx, body)
}

// doGenerate performs a non-streaming generateContent call.
func (g *Gemini) doGenerate(ctx context.Context, body map[string]any) (discogs.ChatResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, g.model, g.apiKey)

	payload, err := json.Marshal(body)
	if err != nil {
		return discogs.ChatResponse{}, g.wrapErr("marshal body: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return discogs.ChatResponse{}, g.wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		// Keep the transport error in the chain: the failover layer
		// classifies dial failures by unwrapping.
		return discogs.ChatResponse{}, fmt.Errorf("gemini: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return discogs.ChatResponse{}, fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return discogs.ChatResponse{}, httpErr(resp, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return discogs.ChatResponse{}, g.wrapErr("parse response JSON: " + err.Error())
	}
	if len(parsed.Candidates) == 0 {
		return discogs.ChatResponse{}, g.wrapErr("no candidates in response")
	}

	var content strings.Builder
	var toolCalls []discogs.ToolCall
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != nil {
			content.WriteString(*part.Text)
		}
		if part.FunctionCall != nil {
			toolCalls = append(toolCalls, discogs.ToolCall{
				ID:   part.FunctionCall.Name,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}

	var usage discogs.Usage
	if parsed.UsageMetadata != nil {
		usage.InputTokens = parsed.UsageMetadata.PromptTokenCount
		usage.OutputTokens = parsed.UsageMetadata.CandidatesTokenCount
	}

	return discogs.ChatResponse{
		Content:   content.String(),
		ToolCalls: toolCalls,
		Usage:     usage,
	}, nil
}

// buildBody constructs the generateContent request body.
func (g *Gemini) buildBody(req discogs.ChatRequest) map[string]any {
	var systemParts []string
	var contents []map[string]any

	for _, m := range req.Messages {
		switch {
		case m.Role == discogs.RoleSystem:
			systemParts = append(systemParts, m.Content)

		case len(m.ToolCalls) > 0:
			// Assistant message with tool calls -> model role with functionCall parts.
			parts := make([]map[string]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				var args any
				if len(tc.Args) > 0 {
					if err := json.Unmarshal(tc.Args, &args); err != nil {
						args = map[string]any{}
					}
				} else {
					args = map[string]any{}
				}
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{
						"name": tc.Name,
						"args": args,
					},
				})
			}
			contents = append(contents, map[string]any{"role": "model", "parts": parts})

		case m.Role == discogs.RoleTool:
			// Tool result -> user role with functionResponse part.
			contents = append(contents, map[string]any{
				"role": "user",
				"parts": []map[string]any{
					{
						"functionResponse": map[string]any{
							"name":     m.ToolCallID,
							"response": map[string]any{"result": m.Content},
						},
					},
				},
			})

		default:
			var parts []map[string]any
			if m.Content != "" {
				parts = append(parts, map[string]any{"text": m.Content})
			}
			for _, img := range m.Images {
				parts = append(parts, map[string]any{
					"inlineData": map[string]any{
						"mimeType": img.MIMEType,
						"data":     base64.StdEncoding.EncodeToString(img.Data),
					},
				})
			}
			// Gemini requires at least one part.
			if len(parts) == 0 {
				parts = append(parts, map[string]any{"text": ""})
			}
			contents = append(contents, map[string]any{"role": mapRole(m.Role), "parts": parts})
		}
	}

	body := map[string]any{"contents": contents}

	if len(systemParts) > 0 {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": strings.Join(systemParts, "\n\n")},
			},
		}
	}

	var toolEntries []map[string]any
	if len(req.Tools) > 0 {
		declarations := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			var params any
			if len(t.Parameters) > 0 {
				if err := json.Unmarshal(t.Parameters, &params); err != nil {
					params = map[string]any{}
				}
			} else {
				params = map[string]any{}
			}
			declarations = append(declarations, map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			})
		}
		toolEntries = append(toolEntries, map[string]any{"functionDeclarations": declarations})
	}
	if g.googleSearch {
		toolEntries = append(toolEntries, map[string]any{"googleSearch": map[string]any{}})
	}
	if g.urlContext {
		toolEntries = append(toolEntries, map[string]any{"urlContext": map[string]any{}})
	}
	if len(toolEntries) > 0 {
		body["tools"] = toolEntries
	}

	genConfig := map[string]any{}
	switch {
	case req.Temperature != nil:
		genConfig["temperature"] = *req.Temperature
	case g.temperature != nil:
		genConfig["temperature"] = *g.temperature
	}
	if g.topP != nil {
		genConfig["topP"] = *g.topP
	}
	switch {
	case req.MaxTokens > 0:
		genConfig["maxOutputTokens"] = req.MaxTokens
	case g.maxTokens > 0:
		genConfig["maxOutputTokens"] = g.maxTokens
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	return body
}

// mapRole maps protocol roles to Gemini content roles.
func mapRole(role string) string {
	if role == discogs.RoleAssistant {
		return "model"
	}
	return "user"
}

func (g *Gemini) wrapErr(msg string) error {
	return &discogs.ErrLLM{Provider: "gemini", Message: msg}
}

// httpErr creates an ErrHTTP, extracting the retry delay from the
// Retry-After header or the google.rpc.RetryInfo detail in the body.
func httpErr(resp *http.Response, body string) *discogs.ErrHTTP {
	ra := discogs.ParseRetryAfter(resp.Header.Get("Retry-After"))
	if ra == 0 {
		ra = parseRetryInfo(body)
	}
	return &discogs.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       body,
		RetryAfter: ra,
	}
}

// parseRetryInfo extracts retryDelay from a google.rpc.RetryInfo error
// detail. Returns 0 if not found or unparseable.
func parseRetryInfo(body string) time.Duration {
	var envelope struct {
		Error struct {
			Details []json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &envelope) != nil {
		return 0
	}
	for _, raw := range envelope.Error.Details {
		var detail struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		}
		if json.Unmarshal(raw, &detail) != nil {
			continue
		}
		if detail.Type == "type.googleapis.com/google.rpc.RetryInfo" && detail.RetryDelay != "" {
			if d, err := time.ParseDuration(detail.RetryDelay); err == nil {
				return d
			}
		}
	}
	return 0
}

// ---- Response types ----

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiPart struct {
	Text         *string `json:"text"`
	Thought      bool    `json:"thought"`
	FunctionCall *struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args"`
	} `json:"functionCall"`
}

var _ discogs.Provider = (*Gemini)(nil)
