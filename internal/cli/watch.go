package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/pipeline"
)

var watchSettle time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Synchronize documents as they appear in a directory",
	Long: `Watch syncs every .md, .txt, .html, .htm or .pdf file created in a
directory until interrupted. A new file is read once it stops changing, and
later edits to a file already synced are ignored.

Example:
  kbsync watch ./inbox
  kbsync watch ./inbox --settle 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet period after the last write before a file is synced")
	addPipelineFlags(watchCmd)
}

// settleQueue holds newly created files until they stop changing
type settleQueue struct {
	settle  time.Duration
	pending map[string]time.Time
}

func newSettleQueue(settle time.Duration) *settleQueue {
	return &settleQueue{settle: settle, pending: make(map[string]time.Time)}
}

// observe queues created files. Writes only extend the quiet period of a
// file still queued, so rewrites of a synced file are not picked up again.
func (q *settleQueue) observe(event fsnotify.Event, now time.Time) {
	if !watchable(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Create):
		q.pending[event.Name] = now
	case event.Has(fsnotify.Write):
		if _, ok := q.pending[event.Name]; ok {
			q.pending[event.Name] = now
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(q.pending, event.Name)
	}
}

// due removes and returns the files quiet for at least the settle period
func (q *settleQueue) due(now time.Time) []string {
	var ready []string
	for path, last := range q.pending {
		if now.Sub(last) >= q.settle {
			ready = append(ready, path)
			delete(q.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

// watchable reports whether path has an input extension kbsync reads
func watchable(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	applyPipelineFlags(a.cfg)

	p, err := a.pipeline(&progressObserver{w: os.Stderr})
	if err != nil {
		return err
	}
	runner := pipeline.NewBatchRunner(a.reader(), p, a.logger.Named("watch"))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", dir)

	queue := newSettleQueue(watchSettle)
	ticker := time.NewTicker(max(watchSettle/2, 100*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "\nStopped watching %s\n", dir)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			queue.observe(event, time.Now())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range queue.due(now) {
				syncWatched(ctx, a.runTimeout(0), runner, path)
			}
		}
	}
}

func syncWatched(ctx context.Context, timeout time.Duration, runner *pipeline.BatchRunner, path string) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	item := runner.RunOne(ctx, path)
	if item.Err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, item.Err)
		return
	}
	pipeline.RenderSummary(os.Stderr, item.Report)
}
