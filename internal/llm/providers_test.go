package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/autoanswer/internal/config"
)

var choiceSchema = &Schema{
	Name:        "choice_answer",
	Description: "answers",
	Root: Object("",
		Prop("single_choices", Array("", Object("", Prop("caption", String(""))))),
	),
}

func init() {
	retryBaseDelay = time.Millisecond
}

func userRequest() Request {
	return Request{
		System:   "sys",
		Messages: []Message{{Role: "user", Content: "question"}},
		Schema:   choiceSchema,
	}
}

func TestOpenAIStructuredOutput(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"busy"}`)
			return
		}
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rf := body["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", rf["type"])
		js := rf["json_schema"].(map[string]any)
		assert.Equal(t, "choice_answer", js["name"])
		assert.Equal(t, true, js["strict"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"single_choices\":[{\"caption\":\"B\"}]}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c, err := NewOpenAI(config.LLM{APIKey: "sk-test", BaseURL: srv.URL + "/v1", MaxAttempts: 3}, zerolog.Nop())
	require.NoError(t, err)
	resp, err := c.Generate(context.Background(), userRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"single_choices":[{"caption":"B"}]}`, resp.Text)
	assert.EqualValues(t, 2, calls.Load())
}

func TestOpenAIClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad schema"}}`)
	}))
	defer srv.Close()

	c, err := NewOpenAI(config.LLM{APIKey: "k", BaseURL: srv.URL, MaxAttempts: 4}, zerolog.Nop())
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), userRequest())
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestAnthropicForcedTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Tools, 1)
		assert.Equal(t, "choice_answer", body.Tools[0].Name)
		require.NotNil(t, body.ToolChoice)
		assert.Equal(t, "tool", body.ToolChoice.Type)
		assert.Equal(t, "choice_answer", body.ToolChoice.Name)
		assert.Equal(t, "sys", body.System)

		_, _ = io.WriteString(w, `{"content":[
			{"type":"text","text":"thinking"},
			{"type":"tool_use","name":"choice_answer","input":{"single_choices":[{"caption":"C"}]}}
		]}`)
	}))
	defer srv.Close()

	c, err := NewAnthropic(config.LLM{APIKey: "ak", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	resp, err := c.Generate(context.Background(), userRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"single_choices":[{"caption":"C"}]}`, resp.Text)
}

func TestGeminiResponseSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gc := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", gc["responseMimeType"])
		assert.NotNil(t, gc["responseSchema"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"single_choices\":[{\"caption\":\"A\"}]}"}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewGemini(context.Background(), config.LLM{APIKey: "gk", Model: "gemini-test", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	resp, err := c.Generate(context.Background(), userRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"single_choices":[{"caption":"A"}]}`, resp.Text)
}

func TestNewClientSelection(t *testing.T) {
	t.Setenv(envOpenAIAPIKey, "")
	_, err := NewClient(context.Background(), config.LLM{Provider: "openai"}, zerolog.Nop())
	assert.ErrorContains(t, err, envOpenAIAPIKey)

	_, err = NewClient(context.Background(), config.LLM{Provider: "mystery"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown LLM provider")

	t.Setenv(envAnthropicAPIKey, "from-env")
	c, err := NewClient(context.Background(), config.LLM{Provider: "Anthropic"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicModel, c.Name())
}

func TestSchemaJSON(t *testing.T) {
	got := choiceSchema.Root.JSON()
	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []string{"single_choices"}, got["required"])
	assert.Equal(t, false, got["additionalProperties"])
	arr := got["properties"].(map[string]any)["single_choices"].(map[string]any)
	assert.Equal(t, "array", arr["type"])

	g := choiceSchema.Root.Genai()
	assert.Equal(t, []string{"single_choices"}, g.Required)
	assert.Equal(t, []string{"single_choices"}, g.PropertyOrdering)
	require.NotNil(t, g.Properties["single_choices"].Items)
}

func TestMaxTokensIsDefaultNotFloor(t *testing.T) {
	var seen []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		seen = append(seen, body["max_tokens"].(float64))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c, err := NewOpenAI(config.LLM{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	req := userRequest()
	req.MaxTokens = 300
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)
	req.MaxTokens = 0
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{300, defaultMaxTokens}, seen)
}

func TestAnthropicHonoursMaxTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body anthropicPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 250, body.MaxTokens)
		_, _ = io.WriteString(w, `{"content":[{"type":"tool_use","name":"choice_answer","input":{}}]}`)
	}))
	defer srv.Close()

	c, err := NewAnthropic(config.LLM{APIKey: "ak", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	req := userRequest()
	req.MaxTokens = 250
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)
}

func TestGeminiConversationRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		contents := body["contents"].([]any)
		require.Len(t, contents, 3)
		var roles []string
		for _, c := range contents {
			roles = append(roles, c.(map[string]any)["role"].(string))
		}
		assert.Equal(t, []string{"user", "model", "user"}, roles)
		gc := body["generationConfig"].(map[string]any)
		assert.EqualValues(t, defaultMaxTokens, gc["maxOutputTokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{}"}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewGemini(context.Background(), config.LLM{APIKey: "gk", Model: "gemini-test", BaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)
	req := userRequest()
	req.Messages = []Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: `{"single_choices":[]}`},
		{Role: "user", Content: "that was wrong"},
	}
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)
}

func TestRequestTimeoutDefault(t *testing.T) {
	assert.Equal(t, defaultTimeout, requestTimeout(0))
	assert.Equal(t, defaultTimeout, requestTimeout(-time.Second))
	assert.Equal(t, 5*time.Second, requestTimeout(5*time.Second))
	assert.Equal(t, defaultMaxTokens, tokenLimit(0))
	assert.Equal(t, 120, tokenLimit(120))
}
