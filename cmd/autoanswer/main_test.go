package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/autoanswer/internal/config"
	"github.com/polzovatel/autoanswer/internal/store"
)

func TestRunFlagsOverrideOnlyWhenSet(t *testing.T) {
	cmd := newRunCmd(&app{})
	require.NoError(t, cmd.ParseFlags([]string{"--book", "b-42", "--task-offset", "3", "--headless"}))

	cfg := &config.Config{}
	cfg.Platform.Book = "from-file"
	cfg.Platform.PageOffset = 2
	cfg.Platform.Resume = true

	var f runFlags
	f.book, _ = cmd.Flags().GetString("book")
	f.taskOffset, _ = cmd.Flags().GetInt("task-offset")
	f.headless, _ = cmd.Flags().GetBool("headless")
	f.apply(cmd, cfg)

	assert.Equal(t, "b-42", cfg.Platform.Book)
	assert.Equal(t, 3, cfg.Platform.TaskOffset)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2, cfg.Platform.PageOffset)
	assert.True(t, cfg.Platform.Resume)
}

func TestRootRequiresKnownSubcommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"transcribe"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestPrintFailedListsLedgerRecords(t *testing.T) {
	ctx := context.Background()
	ledger, err := store.Open(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	require.NoError(t, ledger.Record(ctx, store.TaskRecord{TaskKey: "Unit 1-Listen-Task0", Layout: "audio_choice", State: store.StateFailed, Detail: "score 40"}))
	require.NoError(t, ledger.Record(ctx, store.TaskRecord{TaskKey: "Unit 1-Listen-Task1", State: store.StateSucceeded}))
	require.NoError(t, ledger.Record(ctx, store.TaskRecord{TaskKey: "Unit 1-Read-Task0", State: store.StateUnsupported, Detail: "no handler"}))

	var out bytes.Buffer
	require.NoError(t, printFailed(ctx, &out, ledger))
	assert.Equal(t,
		"Unit 1-Listen-Task0\tfailed\taudio_choice\tscore 40\n"+
			"Unit 1-Read-Task0\tunsupported\t-\tno handler\n",
		out.String())
}
