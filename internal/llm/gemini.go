package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/polzovatel/autoanswer/internal/config"
)

const (
	envGeminiAPIKey    = "GEMINI_API_KEY"
	defaultGeminiModel = "gemini-2.5-flash"
)

type geminiClient struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

func NewGemini(ctx context.Context, cfg config.LLM, logger zerolog.Logger) (Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("missing %s", envGeminiAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(cfg.Model), "\"'")
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: requestTimeout(cfg.Timeout)},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &geminiClient{client: client, model: model, logger: logger}, nil
}

func (c *geminiClient) Name() string { return c.model }

func (c *geminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	var contents []*genai.Content
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(clip(m.Content), role))
	}
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	gc.MaxOutputTokens = int32(tokenLimit(req.MaxTokens))
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(clip(req.System), genai.RoleUser)
	}
	if req.Schema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = req.Schema.Root.Genai()
	}

	c.logger.Debug().Str("model", c.model).Int("messages", len(contents)).Msg("Gemini API request")
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, gc)
	if err != nil {
		return Response{}, fmt.Errorf("gemini: %w", err)
	}
	text := resp.Text()
	c.logger.Debug().Int("response_length", len(text)).Msg("Gemini API success")
	return Response{Text: text}, nil
}
