package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, path string) *Ledger {
	t.Helper()
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedgerRecordAndResume(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "progress.db")
	l := openTemp(t, path)

	require.NoError(t, l.Record(ctx, TaskRecord{TaskKey: "1-1-Task1", Layout: "audio_choice", State: StateSucceeded, Score: 80, Graded: true, Attempts: 1}))
	require.NoError(t, l.Record(ctx, TaskRecord{TaskKey: "1-1-Task2", Layout: "audio_choice", State: StateFailed, Score: 40, Attempts: 3}))
	require.NoError(t, l.Record(ctx, TaskRecord{TaskKey: "1-2-Task1", State: StateUnsupported}))
	require.NoError(t, l.Record(ctx, TaskRecord{TaskKey: "1-2-Task2", Layout: "discussion", State: StateSkipped}))

	ok, err := l.Succeeded(ctx, "1-1-Task1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Succeeded(ctx, "1-1-Task2")
	require.NoError(t, err)
	assert.False(t, ok)

	failed, err := l.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "1-1-Task2", failed[0].TaskKey)
	assert.Equal(t, "1-2-Task1", failed[1].TaskKey)
	assert.Equal(t, l.RunID(), failed[0].RunID)
}

func TestLedgerResumeAcrossRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Record(ctx, TaskRecord{TaskKey: "2-1-Task3", State: StateSucceeded}))
	require.NoError(t, first.Record(ctx, TaskRecord{TaskKey: "2-1-Task4", State: StateFailed}))
	require.NoError(t, first.Close())

	second := openTemp(t, path)
	assert.NotEqual(t, first.RunID(), second.RunID())

	ok, err := second.Succeeded(ctx, "2-1-Task3")
	require.NoError(t, err)
	assert.True(t, ok)

	failed, err := second.Failed(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestLedgerRejectsEmptyKey(t *testing.T) {
	l := openTemp(t, filepath.Join(t.TempDir(), "progress.db"))
	assert.Error(t, l.Record(context.Background(), TaskRecord{State: StateFailed}))
}

func TestLedgerTruncatesDetail(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t, filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, l.Record(ctx, TaskRecord{TaskKey: "k", State: StateFailed, Detail: strings.Repeat("x", 1500)}))

	failed, err := l.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Len(t, failed[0].Detail, 1000)
}
