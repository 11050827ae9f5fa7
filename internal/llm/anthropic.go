package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/autoanswer/internal/config"
)

const (
	envAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"

	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

type anthropicClient struct {
	apiKey      string
	model       string
	url         string
	maxAttempts int
	http        *http.Client
	logger      zerolog.Logger
}

// NewAnthropic answers through a single forced tool whose input schema is
// the answer schema, so the reply arrives as the tool input.
func NewAnthropic(cfg config.LLM, logger zerolog.Logger) (Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("missing %s", envAnthropicAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(cfg.Model), "\"'")
	if model == "" {
		model = defaultAnthropicModel
	}
	url := anthropicAPIURL
	if cfg.BaseURL != "" {
		url = strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages"
	}
	return &anthropicClient{
		apiKey:      key,
		model:       model,
		url:         url,
		maxAttempts: cfg.MaxAttempts,
		http:        &http.Client{Timeout: requestTimeout(cfg.Timeout)},
		logger:      logger,
	}, nil
}

func (c *anthropicClient) Name() string { return c.model }

func (c *anthropicClient) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	payload := anthropicPayload{
		Model:       c.model,
		System:      clip(req.System),
		MaxTokens:   tokenLimit(req.MaxTokens),
		Temperature: float64(req.Temperature),
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicContent{{Type: "text", Text: clip(m.Content)}},
		})
	}
	if req.Schema != nil {
		payload.Tools = []anthropicTool{{
			Name:        req.Schema.Name,
			Description: req.Schema.Description,
			InputSchema: req.Schema.Root.JSON(),
		}}
		payload.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.Schema.Name}
	}

	data, err := postJSON(ctx, c.http, c.logger, "anthropic", c.url, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}, payload, c.maxAttempts)
	if err != nil {
		return Response{}, err
	}

	var ar anthropicResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}
	var text strings.Builder
	for _, block := range ar.Content {
		switch block.Type {
		case "tool_use":
			if len(block.Input) > 0 {
				return Response{Text: string(block.Input)}, nil
			}
		case "text":
			text.WriteString(block.Text)
		}
	}
	c.logger.Debug().Int("response_length", text.Len()).Msg("Anthropic API success")
	return Response{Text: text.String()}, nil
}

type anthropicPayload struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}
