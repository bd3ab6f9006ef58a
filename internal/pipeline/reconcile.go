package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/worker"
)

// reconcileJob reconciles one article kind of the resolved feature
type reconcileJob struct {
	p       *SyncPipeline
	r       *run
	feature model.Feature
	kind    model.ArticleKind
	body    string
}

type reconcileResult struct {
	result *model.SyncResult
	err    *model.ReconciliationError
}

func (r reconcileResult) GetError() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

func (j *reconcileJob) Execute(ctx context.Context) worker.Result {
	res, err := j.p.reconcile(ctx, j.r, j.feature, j.kind, j.body)
	return reconcileResult{result: res, err: err}
}

// synchronize reconciles every declared kind. Kinds share the cleaned body
// and write disjoint keys, so they run on a bounded pool; a failure stays
// with its kind.
func (p *SyncPipeline) synchronize(ctx context.Context, r *run, feature model.Feature, body string, report *model.RunReport) {
	jobs := make([]worker.Job, len(feature.Kinds))
	for i, kind := range feature.Kinds {
		jobs[i] = &reconcileJob{p: p, r: r, feature: feature, kind: kind, body: body}
	}

	for i, res := range worker.Run(ctx, p.opts.Concurrency, jobs) {
		rr, ok := res.(reconcileResult)
		if !ok {
			// never started: the run context ended first
			rr = reconcileResult{err: model.NewReconciliationError(feature, feature.Kinds[i], model.StageLoad, res.GetError())}
		}

		if rr.err != nil {
			report.Failures = append(report.Failures, rr.err)
			r.logger.Warn("reconcile failed",
				zap.String("kind", rr.err.Kind.String()),
				zap.String("stage", string(rr.err.Stage)),
				zap.Error(rr.err.Err))
			p.observer.ReconcileFailed(rr.err)
			continue
		}

		report.Results = append(report.Results, *rr.result)
		p.observer.Reconciled(*rr.result)
	}
}

// reconcile runs the per-kind procedure:
//  1. find the current record
//  2. with a prior: load both prior blobs, merge the cleaned body into the
//     prior document, then generate from the cleaned body and prior article
//  3. without: the cleaned body is the document, generate from scratch
//  4. store both texts, then commit the new version
func (p *SyncPipeline) reconcile(ctx context.Context, r *run, feature model.Feature, kind model.ArticleKind, body string) (*model.SyncResult, *model.ReconciliationError) {
	fail := func(stage model.ReconcileStage, err error) (*model.SyncResult, *model.ReconciliationError) {
		return nil, model.NewReconciliationError(feature, kind, stage, err)
	}
	logger := r.logger.With(zap.String("kind", kind.String()))

	prior, err := p.articles.FindCurrent(ctx, feature.ID, kind)
	if err != nil {
		return fail(model.StageLoad, fmt.Errorf("find current: %w", err))
	}

	document := body
	var priorArticle string

	if prior != nil {
		var priorDocument string
		var g errgroup.Group
		g.Go(func() error {
			text, err := p.content.Get(prior.DocumentDigest)
			if err != nil {
				return fmt.Errorf("load prior document: %w", err)
			}
			priorDocument = text
			return nil
		})
		g.Go(func() error {
			text, err := p.content.Get(prior.ArticleDigest)
			if err != nil {
				return fmt.Errorf("load prior article: %w", err)
			}
			priorArticle = text
			return nil
		})
		if err := g.Wait(); err != nil {
			return fail(model.StageLoad, err)
		}

		document, err = p.transform.Merge(ctx, body, priorDocument)
		if err == nil {
			err = p.checkSoftFailure(document)
		}
		if err != nil {
			return fail(model.StageMerge, err)
		}
		logger.Debug("document merged", zap.Int("prior_version", prior.Version))
	}

	article, err := p.transform.Generate(ctx, kind, body, priorArticle)
	if err == nil {
		err = p.checkSoftFailure(article)
	}
	if err != nil {
		return fail(model.StageGenerate, err)
	}

	// blobs first so a committed record never points at a missing digest
	documentDigest, err := p.content.Put(document)
	if err != nil {
		return fail(model.StageStore, err)
	}
	articleDigest, err := p.content.Put(article)
	if err != nil {
		return fail(model.StageStore, err)
	}

	record, err := p.articles.CommitNewVersion(ctx, model.ArticleKey{FeatureID: feature.ID, Kind: kind}, prior, documentDigest, articleDigest)
	if err != nil {
		return fail(model.StageCommit, err)
	}

	logger.Info("article committed",
		zap.Int("version", record.Version),
		zap.String("document_digest", documentDigest),
		zap.String("article_digest", articleDigest))

	return &model.SyncResult{
		FeatureID:      feature.ID,
		FeatureName:    feature.Name,
		Kind:           kind,
		Version:        record.Version,
		DocumentDigest: documentDigest,
		ArticleDigest:  articleDigest,
		Merged:         prior != nil,
	}, nil
}
