package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrDecode marks model output that does not fit the requested shape.
var ErrDecode = errors.New("undecodable model output")

const systemPrompt = `You are an expert English teacher completing exercises on an online course.
Read the material carefully and answer every question.
Reply with a single JSON object that matches the requested schema and nothing else.
If earlier attempts are listed as wrong, do not repeat those answers.`

// Section is one titled block of material in a prompt.
type Section struct {
	Title string
	Body  string
}

// Prompt is everything one inference call needs.
type Prompt struct {
	Instruction string
	Sections    []Section
	Hints       []string
	Feedback    []string
	Schema      *Schema
}

// Render produces the user message.
func (p *Prompt) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Instruction))
	b.WriteString("\n")
	for _, s := range p.Sections {
		body := strings.TrimSpace(s.Body)
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n%s\n", s.Title, body)
	}
	if len(p.Hints) > 0 {
		b.WriteString("\n## Vocabulary tips\n")
		for _, h := range p.Hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	if len(p.Feedback) > 0 {
		b.WriteString("\n## Previous attempts that scored too low\n")
		for i, f := range p.Feedback {
			fmt.Fprintf(&b, "%d. 错误答案: %s\n", i+1, f)
		}
	}
	return b.String()
}

// Service turns prompts into decoded answers.
type Service struct {
	client      Client
	limiter     *rate.Limiter
	temperature float32
	maxTokens   int
	logger      zerolog.Logger
}

type ServiceOptions struct {
	RequestsPerMinute int
	Temperature       float64
	MaxTokens         int
}

func NewService(client Client, opts ServiceOptions, logger zerolog.Logger) *Service {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	return &Service{
		client:      client,
		limiter:     rate.NewLimiter(limit, 1),
		temperature: float32(opts.Temperature),
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}
}

// Infer sends p and decodes the reply into out. A reply that is not a JSON
// object of the requested shape wraps ErrDecode.
func (s *Service) Infer(ctx context.Context, p *Prompt, out any) error {
	if p == nil {
		return errors.New("nil prompt")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	req := Request{
		System:      systemPrompt,
		Messages:    []Message{{Role: "user", Content: p.Render()}},
		Schema:      p.Schema,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	start := time.Now()
	resp, err := s.client.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", s.client.Name(), err)
	}
	s.logger.Debug().
		Str("model", s.client.Name()).
		Dur("took", time.Since(start)).
		Int("feedback", len(p.Feedback)).
		Msg("inference done")
	return Decode(resp.Text, out)
}

// Decode pulls the first JSON object out of text, tolerating code fences and
// chatter around it.
func Decode(text string, out any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrDecode, err, truncateString(text, 200))
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func extractJSON(text string) (string, error) {
	depth := 0
	start := -1
	inStr := false
	esc := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if esc {
			esc = false
			continue
		}
		switch ch {
		case '\\':
			if inStr {
				esc = true
			}
		case '"':
			if depth > 0 {
				inStr = !inStr
			}
		case '{':
			if !inStr {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inStr && depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return text[start : i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("json not found")
}
