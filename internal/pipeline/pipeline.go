// Package pipeline drives a raw document through cleaning, classification
// and feature resolution to committed, versioned articles.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/content"
	"github.com/ppiankov/kbsync/internal/metrics"
	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/taxonomy"
)

// TextTransform is the text capability the pipeline consumes. Each call is
// a single stateless request. With Options.SoftFailures set, implementations
// may return text starting with model.SoftFailurePrefix instead of an error.
type TextTransform interface {
	Clean(ctx context.Context, raw string) (string, error)
	Classify(ctx context.Context, body, catalog string) (string, error)
	Merge(ctx context.Context, newBody, oldBody string) (string, error)
	// Generate writes the article of kind from body; an empty priorArticle
	// means there is no previous version
	Generate(ctx context.Context, kind model.ArticleKind, body, priorArticle string) (string, error)
}

// Taxonomy supplies the catalog and resolves classifications
type Taxonomy interface {
	Catalog(ctx context.Context) ([]model.CatalogEntry, error)
	Find(ctx context.Context, featureName, subjectName string) (*model.Feature, error)
}

// ArticleRepository is the versioned record store
type ArticleRepository interface {
	FindCurrent(ctx context.Context, featureID int, kind model.ArticleKind) (*model.ArticleRecord, error)
	CommitNewVersion(ctx context.Context, key model.ArticleKey, prior *model.ArticleRecord, documentDigest, articleDigest string) (*model.ArticleRecord, error)
}

// Options tunes a SyncPipeline
type Options struct {
	// Concurrency bounds how many article kinds reconcile at once
	Concurrency  int
	// SoftFailures treats output starting with model.SoftFailurePrefix as a
	// failed call. Off, such output is ordinary content.
	SoftFailures bool
	Logger       *zap.Logger
	Metrics      *metrics.Recorder
	Observer     Observer
}

// SyncPipeline orchestrates one synchronization run per call to Run
type SyncPipeline struct {
	transform TextTransform
	taxonomy  Taxonomy
	articles  ArticleRepository
	content   content.Store
	opts      Options
	logger    *zap.Logger
	observer  Observer

	now   func() time.Time
	newID func() string
}

// New creates a SyncPipeline. The state graph is validated here.
func New(transform TextTransform, tax Taxonomy, articles ArticleRepository, store content.Store, opts Options) (*SyncPipeline, error) {
	if err := validateTable(transitions); err != nil {
		return nil, fmt.Errorf("state graph: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	return &SyncPipeline{
		transform: transform,
		taxonomy:  tax,
		articles:  articles,
		content:   store,
		opts:      opts,
		logger:    logger,
		observer:  observer,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}, nil
}

// run is the transient state of one synchronization
type run struct {
	id      string
	machine *machine
	logger  *zap.Logger
}

func (p *SyncPipeline) advance(r *run, event Event) error {
	from, to, err := r.machine.fire(event)
	if err != nil {
		return err
	}
	r.logger.Debug("state transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Stringer("event", event))
	p.observer.StateChanged(r.id, from, to)
	return nil
}

// Run synchronizes one raw document. Fatal failures return a typed error
// (IngestionError, ClassificationError or UnresolvedFeatureError) and commit
// nothing. Otherwise the report lists one result or failure per article kind
// the resolved feature declares.
func (p *SyncPipeline) Run(ctx context.Context, raw, source string) (*model.RunReport, error) {
	m, err := newMachine(transitions)
	if err != nil {
		return nil, err
	}
	r := &run{id: p.newID(), machine: m}
	r.logger = p.logger.With(zap.String("run_id", r.id))

	report := &model.RunReport{
		RunID:     r.id,
		Source:    source,
		StartedAt: p.now(),
	}
	r.logger.Info("run started", zap.String("source", source), zap.Int("raw_bytes", len(raw)))

	if err := p.run(ctx, r, raw, source, report); err != nil {
		report.FinishedAt = p.now()
		report.Status = model.RunFailed
		p.opts.Metrics.ObserveRun(report)
		r.logger.Error("run aborted",
			zap.Stringer("state", r.machine.state()),
			zap.Error(err))
		return nil, err
	}
	return report, nil
}

func (p *SyncPipeline) run(ctx context.Context, r *run, raw, source string, report *model.RunReport) error {
	// 1. Accept input
	if strings.TrimSpace(raw) == "" {
		return &model.IngestionError{Source: source, Err: model.ErrEmptyInput}
	}
	if err := p.advance(r, EventInputLoaded); err != nil {
		return err
	}

	// 2. Clean
	body, err := p.transform.Clean(ctx, raw)
	if err == nil {
		err = p.checkSoftFailure(body)
	}
	if err == nil && strings.TrimSpace(body) == "" {
		err = model.ErrEmptyInput
	}
	if err != nil {
		return &model.IngestionError{Source: source, Err: fmt.Errorf("clean: %w", err)}
	}
	p.observer.Cleaned(r.id, body)
	if err := p.advance(r, EventCleaned); err != nil {
		return err
	}

	// 3. Classify against the full catalog
	catalog, err := p.taxonomy.Catalog(ctx)
	if err != nil {
		return &model.ClassificationError{Err: err}
	}
	payload, err := p.transform.Classify(ctx, body, taxonomy.RenderCatalog(catalog))
	if err != nil {
		return &model.ClassificationError{Err: err}
	}
	if err := p.checkSoftFailure(payload); err != nil {
		return &model.ClassificationError{Payload: payload, Err: err}
	}
	classification, err := taxonomy.ParseClassification(payload)
	if err != nil {
		return &model.ClassificationError{Payload: payload, Err: err}
	}
	if err := p.advance(r, EventClassified); err != nil {
		return err
	}

	// 4. Resolve the feature, exact match only
	feature, err := p.taxonomy.Find(ctx, classification.Feature, classification.Subject)
	if err != nil {
		return &model.UnresolvedFeatureError{Subject: classification.Subject, Feature: classification.Feature, Err: err}
	}
	if feature == nil {
		return &model.UnresolvedFeatureError{Subject: classification.Subject, Feature: classification.Feature}
	}
	report.Feature = *feature
	r.logger.Info("feature resolved",
		zap.String("subject", feature.SubjectName),
		zap.String("feature", feature.Name),
		zap.Int("kinds", len(feature.Kinds)))
	p.observer.Classified(classification, *feature)
	if err := p.advance(r, EventFeatureResolved); err != nil {
		return err
	}

	// 5. Reconcile every declared kind
	if err := p.advance(r, EventSyncStarted); err != nil {
		return err
	}
	p.synchronize(ctx, r, *feature, body, report)
	if err := p.advance(r, EventSyncFinished); err != nil {
		return err
	}

	report.FinishedAt = p.now()
	report.Status = model.StatusFor(len(report.Results), len(report.Failures))
	p.opts.Metrics.ObserveRun(report)

	r.logger.Info("run finished",
		zap.String("status", string(report.Status)),
		zap.Int("committed", len(report.Results)),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("elapsed", report.Duration()))
	return nil
}

// checkSoftFailure turns degraded transform text into an error when the
// transform is configured to report failures that way
func (p *SyncPipeline) checkSoftFailure(text string) error {
	if p.opts.SoftFailures && model.IsSoftFailure(text) {
		return fmt.Errorf("%w: %s", model.ErrSoftFailure, firstLine(text))
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// IsFatal reports whether err aborted a run before synchronization
func IsFatal(err error) bool {
	var (
		ingestion      *model.IngestionError
		classification *model.ClassificationError
		unresolved     *model.UnresolvedFeatureError
	)
	return errors.As(err, &ingestion) || errors.As(err, &classification) || errors.As(err, &unresolved)
}
