package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/source"
)

type fakeReader struct {
	docs map[string]string
}

func (r *fakeReader) Read(ctx context.Context, location string) (*source.Document, error) {
	text, ok := r.docs[location]
	if !ok {
		return nil, &model.IngestionError{Source: location, Err: os.ErrNotExist}
	}
	return &source.Document{Source: location, Format: source.FormatMarkdown, Text: text}, nil
}

type fakeRunner struct {
	runs   []string
	status map[string]model.RunStatus
	cancel context.CancelFunc
}

func (r *fakeRunner) Run(ctx context.Context, raw, src string) (*model.RunReport, error) {
	r.runs = append(r.runs, src)
	if r.cancel != nil {
		r.cancel()
	}
	status, ok := r.status[src]
	if !ok {
		return nil, &model.UnresolvedFeatureError{Subject: "x", Feature: "y"}
	}
	return &model.RunReport{Source: src, Status: status}, nil
}

func TestBatchRunner_ContinuesAfterFailures(t *testing.T) {
	reader := &fakeReader{docs: map[string]string{"a.md": "A", "b.md": "B", "c.md": "C"}}
	runner := &fakeRunner{status: map[string]model.RunStatus{"a.md": model.RunSucceeded, "c.md": model.RunPartial}}

	items := NewBatchRunner(reader, runner, nil).Run(context.Background(), []string{"a.md", "missing.md", "b.md", "c.md"})
	require.Len(t, items, 4)

	assert.Equal(t, model.RunSucceeded, items[0].Status())
	assert.Equal(t, model.RunFailed, items[1].Status())
	assert.Equal(t, model.RunFailed, items[2].Status())
	assert.Equal(t, model.RunPartial, items[3].Status())
	assert.Equal(t, []string{"a.md", "b.md", "c.md"}, runner.runs)

	assert.Equal(t, BatchCounts{Succeeded: 1, Partial: 1, Failed: 2}, CountBatch(items))
}

func TestBatchRunner_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{docs: map[string]string{"a.md": "A", "b.md": "B"}}
	runner := &fakeRunner{status: map[string]model.RunStatus{"a.md": model.RunSucceeded, "b.md": model.RunSucceeded}, cancel: cancel}

	items := NewBatchRunner(reader, runner, nil).Run(ctx, []string{"a.md", "b.md"})
	require.Len(t, items, 2)
	assert.Equal(t, model.RunSucceeded, items[0].Status())
	assert.True(t, errors.Is(items[1].Err, context.Canceled))
	assert.Equal(t, []string{"a.md"}, runner.runs)
}

func TestReadInputList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte(`
# weekly export
docs/setup.md
https://wiki.example.com/pages/42

/abs/notes.txt
docs/setup.md
`), 0o644))

	got, err := ReadInputList(list)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "docs/setup.md"),
		"https://wiki.example.com/pages/42",
		"/abs/notes.txt",
	}, got)
}

func TestReadInputList_Missing(t *testing.T) {
	_, err := ReadInputList(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
