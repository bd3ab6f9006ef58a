package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/source"
)

// DocumentReader loads raw documents from a location
type DocumentReader interface {
	Read(ctx context.Context, location string) (*source.Document, error)
}

// Runner is the part of SyncPipeline a batch needs
type Runner interface {
	Run(ctx context.Context, raw, source string) (*model.RunReport, error)
}

// BatchItem is the outcome of one input of a batch
type BatchItem struct {
	Location string
	Report   *model.RunReport
	Err      error
}

// Status is the run status, or failed when the input never produced a report
func (i BatchItem) Status() model.RunStatus {
	if i.Err != nil || i.Report == nil {
		return model.RunFailed
	}
	return i.Report.Status
}

// BatchRunner synchronizes many inputs one after another. Runs are not
// parallel: every run commits into the same single-writer store.
type BatchRunner struct {
	reader DocumentReader
	runner Runner
	logger *zap.Logger
}

// NewBatchRunner creates a batch runner
func NewBatchRunner(reader DocumentReader, runner Runner, logger *zap.Logger) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{reader: reader, runner: runner, logger: logger}
}

// RunOne reads and synchronizes a single location
func (b *BatchRunner) RunOne(ctx context.Context, location string) BatchItem {
	doc, err := b.reader.Read(ctx, location)
	if err != nil {
		return BatchItem{Location: location, Err: err}
	}

	report, err := b.runner.Run(ctx, doc.Text, doc.Source)
	return BatchItem{Location: location, Report: report, Err: err}
}

// Run synchronizes every location in order. A failed input does not stop
// the batch; a cancelled context does.
func (b *BatchRunner) Run(ctx context.Context, locations []string) []BatchItem {
	items := make([]BatchItem, 0, len(locations))
	for i, location := range locations {
		if err := ctx.Err(); err != nil {
			for _, rest := range locations[i:] {
				items = append(items, BatchItem{Location: rest, Err: err})
			}
			break
		}

		item := b.RunOne(ctx, location)
		if item.Err != nil {
			b.logger.Warn("batch input failed", zap.String("location", location), zap.Error(item.Err))
		}
		items = append(items, item)
	}
	return items
}

// BatchCounts tallies batch items by status
type BatchCounts struct {
	Succeeded int
	Partial   int
	Failed    int
}

// CountBatch tallies items by status
func CountBatch(items []BatchItem) BatchCounts {
	var c BatchCounts
	for _, item := range items {
		switch item.Status() {
		case model.RunSucceeded:
			c.Succeeded++
		case model.RunPartial:
			c.Partial++
		default:
			c.Failed++
		}
	}
	return c
}

// ReadInputList reads one location per line, skipping blanks and # comments
// and dropping duplicates. Relative paths resolve against the list's directory.
func ReadInputList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(path)
	var locations []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !source.IsURL(line) && !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			locations = append(locations, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return locations, nil
}
