package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/autoanswer/internal/config"
)

type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	Temperature float32
	MaxTokens   int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Response struct {
	Text string
}

// NewClient builds the provider named in cfg. An empty api_key falls back to
// the provider's conventional environment variable.
func NewClient(ctx context.Context, cfg config.LLM, logger zerolog.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}
	switch provider {
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(envOpenAIAPIKey)
		}
		return NewOpenAI(cfg, logger)
	case "anthropic":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(envAnthropicAPIKey)
		}
		return NewAnthropic(cfg, logger)
	case "gemini":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(envGeminiAPIKey)
		}
		return NewGemini(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (use 'openai', 'anthropic' or 'gemini')", provider)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
