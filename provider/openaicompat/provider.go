// Package openaicompat implements discogs.Provider for any API speaking
// the OpenAI chat completions dialect: Ollama's /v1 endpoint, Groq,
// OpenAI itself, Together, vLLM, LM Studio, and so on. One adapter covers
// both the local model server and hosted fallbacks.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bpafoshizle/discogs"
)

// Provider implements discogs.Provider against an OpenAI-compatible API.
type Provider struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	name        string
	temperature *float64
	maxTokens   int
}

// Option configures a Provider.
type Option func(*Provider)

// WithName overrides the provider name reported in logs and errors
// (default "openai"). Assembly uses "ollama" and "groq".
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithTemperature sets a default sampling temperature applied when the
// request does not carry one.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = &t }
}

// WithMaxTokens sets a default completion cap applied when the request
// does not carry one.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates an OpenAI-compatible chat provider. baseURL is the API base
// (e.g. "http://localhost:11434/v1", "https://api.groq.com/openai/v1");
// the /chat/completions path is appended. apiKey may be empty for local
// servers.
func New(apiKey, model, baseURL string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.name }

// Chat sends a non-streaming completion request.
func (p *Provider) Chat(ctx context.Context, req discogs.ChatRequest) (discogs.ChatResponse, error) {
	body := p.buildBody(req)

	payload, err := json.Marshal(body)
	if err != nil {
		return discogs.ChatResponse{}, p.wrapErr("marshal body: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return discogs.ChatResponse{}, p.wrapErr("create request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// Transport errors stay unwrapped in the chain so the failover
		// layer can classify a dead local server.
		return discogs.ChatResponse{}, fmt.Errorf("%s: request: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return discogs.ChatResponse{}, fmt.Errorf("%s: read response: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return discogs.ChatResponse{}, &discogs.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: discogs.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return p.parseResponse(respBody)
}

func (p *Provider) parseResponse(body []byte) (discogs.ChatResponse, error) {
	var parsed chatCompletion
	if err := json.Unmarshal(body, &parsed); err != nil {
		return discogs.ChatResponse{}, p.wrapErr("parse response JSON: " + err.Error())
	}
	if len(parsed.Choices) == 0 {
		return discogs.ChatResponse{}, p.wrapErr("no choices in response")
	}

	msg := parsed.Choices[0].Message
	out := discogs.ChatResponse{
		Content: msg.Content,
		Usage: discogs.Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, discogs.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (p *Provider) wrapErr(msg string) error {
	return &discogs.ErrLLM{Provider: p.name, Message: msg}
}

var _ discogs.Provider = (*Provider)(nil)
