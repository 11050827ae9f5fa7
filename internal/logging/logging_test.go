package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/autoanswer/internal/config"
)

func TestConsoleAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer

	log, closer := New(config.Logging{Level: "debug", File: file, MaxSizeMB: 1, NoColor: true}, &console)
	log.Debug().Str("comp", "runner").Int("task", 3).Msg("task started")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "task started")
	assert.Contains(t, console.String(), "comp=runner")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "task started", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.EqualValues(t, 3, entry["task"])
}

func TestLevelFiltering(t *testing.T) {
	var console bytes.Buffer
	log, closer := New(config.Logging{Level: "warn", NoColor: true}, &console)
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var console bytes.Buffer
	log, _ := New(config.Logging{Level: "chatty", NoColor: true}, &console)
	log.Debug().Msg("debug line")
	log.Info().Msg("info line")
	assert.NotContains(t, console.String(), "debug line")
	assert.Contains(t, console.String(), "info line")
}
