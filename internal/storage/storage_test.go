package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bdougie/audioscribe/internal/logging"
	"github.com/bdougie/audioscribe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i int) models.AnalysisRecord {
	return models.AnalysisRecord{
		ID:          fmt.Sprintf("rec-%d", i),
		Image:       fmt.Sprintf("photo_%d.jpg", i),
		Description: fmt.Sprintf("description %d", i),
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC),
	}
}

func TestFileJournalBatches(t *testing.T) {
	dir := t.TempDir()
	j := NewFileJournal(dir, logging.Discard())
	ctx := context.Background()

	for i := 0; i < batchSize-1; i++ {
		require.NoError(t, j.AddResult(ctx, record(i)))
	}
	_, err := os.Stat(j.Path())
	assert.True(t, os.IsNotExist(err), "nothing written before the batch fills")

	require.NoError(t, j.AddResult(ctx, record(batchSize-1)))
	saved, err := ReadFileJournal(dir)
	require.NoError(t, err)
	assert.Len(t, saved, batchSize)
}

func TestFileJournalFlushAppends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewFileJournal(dir, logging.Discard())
	require.NoError(t, first.AddResult(ctx, record(1)))
	require.NoError(t, first.Flush())

	second := NewFileJournal(dir, logging.Discard())
	require.NoError(t, second.AddResult(ctx, record(2)))
	require.NoError(t, second.Flush())
	require.NoError(t, second.Flush())

	saved, err := ReadFileJournal(dir)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, record(1), saved[0])
	assert.Equal(t, record(2), saved[1])
}

func TestFileJournalCorruptFile(t *testing.T) {
	dir := t.TempDir()
	j := NewFileJournal(dir, logging.Discard())
	require.NoError(t, os.WriteFile(j.Path(), []byte("not json"), 0644))

	require.NoError(t, j.AddResult(context.Background(), record(1)))
	assert.ErrorContains(t, j.Flush(), "failed to unmarshal existing journal")
}

func TestReadFileJournalMissing(t *testing.T) {
	saved, err := ReadFileJournal(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, saved)
}

type failingJournal struct{ err error }

func (f failingJournal) AddResult(context.Context, models.AnalysisRecord) error { return f.err }
func (f failingJournal) Flush() error                                         { return f.err }

func TestMultiJournal(t *testing.T) {
	dir := t.TempDir()
	file := NewFileJournal(dir, logging.Discard())
	boom := errors.New("boom")

	j := Multi(failingJournal{err: boom}, file)
	err := j.AddResult(context.Background(), record(7))
	assert.ErrorIs(t, err, boom)

	require.ErrorIs(t, j.Flush(), boom)
	saved, err := ReadFileJournal(dir)
	require.NoError(t, err)
	assert.Equal(t, []models.AnalysisRecord{record(7)}, saved)

	assert.Same(t, file, Multi(file))
}
