// Package config loads bot configuration from TOML with environment
// overrides.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Ollama    OllamaConfig    `toml:"ollama"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Groq      GroqConfig      `toml:"groq"`
	XAI       XAIConfig       `toml:"xai"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	X         XConfig         `toml:"x"`
	Bot       BotConfig       `toml:"bot"`
}

type OllamaConfig struct {
	Endpoint string `toml:"endpoint"`
	Model    string `toml:"model"`
}

type GeminiConfig struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	ResearchModel  string `toml:"research_model"`
	EmbeddingModel string `toml:"embedding_model"`
}

type GroqConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type XAIConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type EmbeddingConfig struct {
	Dimensions int `toml:"dimensions"`
}

type DatabaseConfig struct {
	// DSN selects the backing store: a postgres:// URL uses PostgreSQL
	// with pgvector, anything else is treated as a SQLite file path.
	// Empty keeps everything in process memory.
	DSN string `toml:"dsn"`
}

type XConfig struct {
	BearerToken string `toml:"bearer_token"`
}

type BotConfig struct {
	SystemPromptPath string `toml:"system_prompt_path"`
	MaxTokens        int    `toml:"max_tokens"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Ollama: OllamaConfig{Model: "llama3.1:8b"},
		Gemini: GeminiConfig{
			Model:          "gemini-2.5-flash",
			ResearchModel:  "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
		},
		Groq:      GroqConfig{Model: "llama-3.3-70b-versatile"},
		XAI:       XAIConfig{Model: "grok-4-1-fast"},
		Embedding: EmbeddingConfig{Dimensions: 1536},
		Bot:       BotConfig{MaxTokens: 330},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "discogs.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("DISCOGS_OLLAMA_ENDPOINT"); v != "" {
		cfg.Ollama.Endpoint = v
	}
	if v := os.Getenv("DISCOGS_OLLAMA_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("DISCOGS_GOOGLE_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("DISCOGS_GROQ_API_KEY"); v != "" {
		cfg.Groq.APIKey = v
	}
	if v := os.Getenv("DISCOGS_XAI_API_KEY"); v != "" {
		cfg.XAI.APIKey = v
	}
	if v := os.Getenv("DISCOGS_X_BEARER_TOKEN"); v != "" {
		cfg.X.BearerToken = v
	}
	if v := os.Getenv("DISCOGS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DISCOGS_SYSTEM_PROMPT_PATH"); v != "" {
		cfg.Bot.SystemPromptPath = v
	}

	return cfg
}
