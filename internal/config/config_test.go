package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestExpandPlaceholder(t *testing.T) {
	t.Setenv("AA_SET", "value")

	cases := map[string]string{
		"plain":              "plain",
		"${AA_SET}":          "value",
		"${AA_SET:fallback}": "value",
		"${AA_UNSET:def}":    "def",
		"${AA_UNSET:}":       "",
		"${AA_UNSET}":        "",
		"prefix ${AA_SET}":   "prefix ${AA_SET}",
		"${AA_UNSET:a:b}":    "a:b",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExpandPlaceholder(in), in)
	}
}

func TestLoadFileWithPlaceholders(t *testing.T) {
	t.Setenv("AA_USER", "student01")
	path := writeConfig(t, `
platform:
  username: ${AA_USER}
  password: ${AA_PASS:secret}
  book: course-v2
  task_wait: 500ms
retry:
  max_retries: 3
llm:
  provider: gemini
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "student01", cfg.Platform.Username)
	assert.Equal(t, "secret", cfg.Platform.Password)
	assert.Equal(t, "course-v2", cfg.Platform.Book)
	assert.Equal(t, 500*time.Millisecond, cfg.Platform.TaskWait)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	// untouched defaults survive
	assert.Equal(t, 60.0, cfg.Retry.PassScore)
	assert.Equal(t, 2*time.Second, cfg.Retry.ScoreTimeout)
	assert.Equal(t, "memory", cfg.Transcription.Cache)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "platform:\n  book: from-file\n")
	t.Setenv("AUTOANSWER_PLATFORM_BOOK", "from-env")
	t.Setenv("AUTOANSWER_BROWSER_HEADLESS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Platform.Book)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Retry: Retry{MaxRetries: -1, PassScore: 120}}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"username", "password", "book", "max_retries", "pass_score"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestUnsetPlaceholderFailsValidation(t *testing.T) {
	path := writeConfig(t, `
platform:
  username: ${AA_MISSING_USER}
  password: ${AA_MISSING_PASS}
  book: course-v2
llm:
  api_key: ${AA_MISSING_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Platform.Username)
	assert.Empty(t, cfg.Platform.Password)
	assert.Empty(t, cfg.LLM.APIKey)
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "platform.username is required")
	assert.ErrorContains(t, err, "platform.password is required")
}
