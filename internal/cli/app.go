package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/content"
	"github.com/ppiankov/kbsync/internal/llm"
	"github.com/ppiankov/kbsync/internal/logging"
	"github.com/ppiankov/kbsync/internal/metrics"
	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/pipeline"
	"github.com/ppiankov/kbsync/internal/source"
	"github.com/ppiankov/kbsync/internal/storage/sqlite"
	"github.com/ppiankov/kbsync/internal/taxonomy"
	"github.com/ppiankov/kbsync/internal/worker"
)

// app holds the process-wide resources of one command invocation
type app struct {
	cfg     *model.Config
	logger  *zap.Logger
	db      *sqlite.Store
	blobs   content.Store
	metrics *metrics.Recorder
}

func newLogger(cfg *model.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	if logFormat == "json" {
		return logging.New(level)
	}
	return logging.NewConsole(level)
}

// openApp loads configuration and opens the stores
func openApp() (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.NewStore(cfg.Store.DataDir, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	disk := content.NewDiskStore(cfg.Store.BlobDir, cfg.Store.BlobExt)
	var blobs content.Store = disk
	if cfg.Cache.Enabled {
		blobs = content.NewCachedStore(disk, cfg.Cache.TTL)
	}

	logger.Debug("stores opened",
		zap.String("db", db.Path()),
		zap.String("blobs", disk.Dir()))

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		blobs:   blobs,
		metrics: metrics.New(),
	}, nil
}

// close flushes metrics and releases the stores
func (a *app) close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// transformer builds the text transform from the llm config
func (a *app) transformer() (*llm.Transformer, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.LLM))
	if err != nil {
		return nil, err
	}

	return llm.NewTransformer(provider, llm.TransformerOptions{
		SoftFailures: a.cfg.Transform.SoftFailures,
		Timeout:      a.cfg.LLM.Timeout,
		Limiter:      worker.NewLimiter(a.cfg.Transform.RequestsPerSecond, a.cfg.Transform.Burst),
		Logger:       a.logger.Named("llm"),
		Metrics:      a.metrics,
	}), nil
}

// pipeline wires the sync pipeline over the opened stores
func (a *app) pipeline(observer pipeline.Observer) (*pipeline.SyncPipeline, error) {
	transform, err := a.transformer()
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		transform,
		taxonomy.NewLookup(a.db.Taxonomy()),
		a.db.Articles(),
		a.blobs,
		pipeline.Options{
			Concurrency:  a.cfg.Sync.Concurrency,
			SoftFailures: a.cfg.Transform.SoftFailures,
			Logger:       a.logger.Named("pipeline"),
			Metrics:      a.metrics,
			Observer:     observer,
		},
	)
}

// reader builds the raw input reader
func (a *app) reader() *source.Reader {
	fetcher := source.NewFetcher(source.FetcherOptions{
		Timeout:       a.cfg.Source.Timeout,
		UserAgent:     a.cfg.Source.UserAgent,
		MaxBytes:      a.cfg.Source.MaxBytes,
		RespectRobots: a.cfg.Source.RespectRobots,
		HTTPProxy:     a.cfg.LLM.HTTPProxy,
		HTTPSProxy:    a.cfg.LLM.HTTPSProxy,
		Logger:        a.logger.Named("source"),
	})
	return source.NewReader(fetcher, source.ReaderOptions{
		MaxBytes:        a.cfg.Source.MaxBytes,
		StripConfluence: a.cfg.Source.StripConfluence,
		Stdin:           os.Stdin,
	})
}

// withTimeout bounds ctx by d; zero or negative means no deadline
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// runTimeout returns the per-run deadline, or the override when set
func (a *app) runTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return a.cfg.Sync.RunTimeout
}
