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
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	defaultOpenAIModel = "gpt-4o-mini"

	openAIBaseURL = "https://api.openai.com/v1"
)

type openAIClient struct {
	apiKey      string
	model       string
	url         string
	maxAttempts int
	http        *http.Client
	logger      zerolog.Logger
}

type openAIPayload struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAI talks to any chat-completions compatible endpoint; base_url
// points it at a proxy or a self-hosted gateway.
func NewOpenAI(cfg config.LLM, logger zerolog.Logger) (Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("missing %s", envOpenAIAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(cfg.Model), "\"'")
	if model == "" {
		model = defaultOpenAIModel
	}
	base := openAIBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &openAIClient{
		apiKey:      key,
		model:       model,
		url:         base + "/chat/completions",
		maxAttempts: cfg.MaxAttempts,
		http:        &http.Client{Timeout: requestTimeout(cfg.Timeout)},
		logger:      logger,
	}, nil
}

func (c *openAIClient) Name() string { return c.model }

func (c *openAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	payload := openAIPayload{
		Model:       c.model,
		Temperature: float64(req.Temperature),
		MaxTokens:   tokenLimit(req.MaxTokens),
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: clip(req.System)})
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, openAIMessage{Role: m.Role, Content: clip(m.Content)})
	}
	if req.Schema != nil {
		payload.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Root.JSON(),
				Strict: true,
			},
		}
	}

	data, err := postJSON(ctx, c.http, c.logger, "openai", c.url, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, payload, c.maxAttempts)
	if err != nil {
		return Response{}, err
	}

	var or openAIResponse
	if err := json.Unmarshal(data, &or); err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}
	if len(or.Choices) == 0 {
		return Response{}, errors.New("openai: empty choices")
	}
	msg := or.Choices[0].Message
	if msg.Refusal != "" {
		return Response{}, fmt.Errorf("openai refused: %s", truncateString(msg.Refusal, 200))
	}
	c.logger.Debug().
		Int("response_length", len(msg.Content)).
		Str("finish_reason", or.Choices[0].FinishReason).
		Msg("OpenAI API success")
	return Response{Text: msg.Content}, nil
}
