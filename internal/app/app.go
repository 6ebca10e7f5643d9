// Package app assembles the assistant from configuration: providers in
// failover order, durable stores, and the tool set.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bpafoshizle/discogs"
	"github.com/bpafoshizle/discogs/internal/config"
	"github.com/bpafoshizle/discogs/provider/gemini"
	"github.com/bpafoshizle/discogs/provider/openaicompat"
	"github.com/bpafoshizle/discogs/store/postgres"
	"github.com/bpafoshizle/discogs/store/sqlite"
	"github.com/bpafoshizle/discogs/tools/remember"
	"github.com/bpafoshizle/discogs/tools/urlcontext"
	"github.com/bpafoshizle/discogs/tools/webresearch"
	"github.com/bpafoshizle/discogs/tools/xpost"
	"github.com/bpafoshizle/discogs/tools/xresearch"
)

const defaultSystemPrompt = `You are DiscoBot, a helpful and knowledgeable assistant with a passion for music. Answer concisely and stay friendly.`

// App is the assembled application: the assistant plus the stores it
// owns.
type App struct {
	Assistant   *discogs.Assistant
	checkpoints discogs.CheckpointStore
	memories    discogs.MemoryStore
}

// Build wires providers, stores and tools from cfg. It fails with
// discogs.ErrConfig when no provider credentials are present.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	ring, err := buildRing(cfg, logger)
	if err != nil {
		return nil, err
	}

	checkpoints, memories, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var embedder discogs.EmbeddingProvider
	if cfg.Gemini.APIKey != "" {
		embedder = gemini.NewEmbedding(cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel, cfg.Embedding.Dimensions)
	}

	opts := []discogs.AssistantOption{
		discogs.WithSystemPrompt(loadSystemPrompt(cfg, logger)),
		discogs.WithStores(checkpoints, memories),
		discogs.WithMaxTokens(cfg.Bot.MaxTokens),
		discogs.WithLogger(logger),
		discogs.WithMemoryTool(remember.New(memories, embedder)),
		discogs.WithTools(buildTools(cfg, ring)...),
	}
	if embedder != nil {
		opts = append(opts, discogs.WithEmbedder(embedder))
	}

	assistant, err := discogs.NewAssistant(ring, opts...)
	if err != nil {
		return nil, err
	}
	return &App{Assistant: assistant, checkpoints: checkpoints, memories: memories}, nil
}

// Init prepares the backing stores.
func (a *App) Init(ctx context.Context) error {
	if err := a.checkpoints.Init(ctx); err != nil {
		return fmt.Errorf("checkpoint store init: %w", err)
	}
	if err := a.memories.Init(ctx); err != nil {
		return fmt.Errorf("memory store init: %w", err)
	}
	return nil
}

// Close releases the stores.
func (a *App) Close() error {
	err := a.checkpoints.Close()
	if merr := a.memories.Close(); err == nil {
		err = merr
	}
	return err
}

// buildRing assembles providers in failover order: local Ollama first,
// then Gemini, then Groq.
func buildRing(cfg config.Config, logger *slog.Logger) (*discogs.ProviderRing, error) {
	var providers []discogs.Provider

	if cfg.Ollama.Endpoint != "" {
		providers = append(providers, openaicompat.New("", cfg.Ollama.Model, cfg.Ollama.Endpoint,
			openaicompat.WithName("ollama"),
			openaicompat.WithTemperature(0),
			openaicompat.WithMaxTokens(cfg.Bot.MaxTokens),
		))
	}
	if cfg.Gemini.APIKey != "" {
		providers = append(providers, discogs.WithRetry(
			gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model, gemini.WithTemperature(0)),
			discogs.RetryMaxAttempts(2), discogs.RetryLogger(logger),
		))
	}
	if cfg.Groq.APIKey != "" {
		providers = append(providers, discogs.WithRetry(
			openaicompat.New(cfg.Groq.APIKey, cfg.Groq.Model, "https://api.groq.com/openai/v1",
				openaicompat.WithName("groq"),
				openaicompat.WithTemperature(0)),
			discogs.RetryMaxAttempts(2), discogs.RetryLogger(logger),
		))
	}

	if len(providers) == 0 {
		return nil, &discogs.ErrConfig{Reason: "at least one AI provider must be configured"}
	}
	return discogs.NewProviderRing(providers...), nil
}

// buildStores resolves the DSN: postgres:// URLs use PostgreSQL with
// pgvector, anything else is a SQLite file path, empty stays in memory.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (discogs.CheckpointStore, discogs.MemoryStore, error) {
	dsn := cfg.Database.DSN
	switch {
	case dsn == "":
		return discogs.NewMemoryCheckpoints(), discogs.NewMemoryFacts(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		s := postgres.New(pool, cfg.Embedding.Dimensions, postgres.WithLogger(logger))
		return s, s, nil
	default:
		s, err := sqlite.New(dsn, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

func buildTools(cfg config.Config, ring *discogs.ProviderRing) []discogs.Tool {
	var tools []discogs.Tool
	if cfg.Gemini.APIKey != "" {
		research := gemini.New(cfg.Gemini.APIKey, cfg.Gemini.ResearchModel,
			gemini.WithGoogleSearch(), gemini.WithTemperature(0))
		tools = append(tools, webresearch.New(research))
	}
	tools = append(tools, urlcontext.New(ringChat{ring}))
	if cfg.XAI.APIKey != "" {
		// Grok grounds itself with live X and web search server-side.
		grok := openaicompat.New(cfg.XAI.APIKey, cfg.XAI.Model, "https://api.x.ai/v1",
			openaicompat.WithName("grok"))
		tools = append(tools, xresearch.New(grok))
	}
	if cfg.X.BearerToken != "" {
		tools = append(tools, xpost.New(cfg.X.BearerToken))
	}
	return tools
}

// ringChat lets a tool chat through whichever provider currently heads
// the ring, so tool calls follow failover.
type ringChat struct {
	ring *discogs.ProviderRing
}

func (r ringChat) Name() string { return r.ring.Current().Name() }
func (r ringChat) Chat(ctx context.Context, req discogs.ChatRequest) (discogs.ChatResponse, error) {
	return r.ring.Current().Chat(ctx, req)
}

func loadSystemPrompt(cfg config.Config, logger *slog.Logger) string {
	if cfg.Bot.SystemPromptPath == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(cfg.Bot.SystemPromptPath)
	if err != nil {
		logger.Warn("system prompt file unreadable, using default", "path", cfg.Bot.SystemPromptPath, "error", err)
		return defaultSystemPrompt
	}
	return strings.TrimSpace(string(data))
}
