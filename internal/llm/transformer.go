package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/kbsync/internal/metrics"
	"github.com/ppiankov/kbsync/internal/model"
	"github.com/ppiankov/kbsync/internal/worker"
)

var errEmptyCompletion = errors.New("provider returned an empty completion")

// TransformerOptions tunes how transform calls are issued
type TransformerOptions struct {
	// SoftFailures turns call errors into "Error in <capability>: <err>" text
	SoftFailures bool

	// Timeout bounds each call; zero leaves only the provider client timeout
	Timeout time.Duration

	// Limiter is keyed by capability name; nil disables rate limiting
	Limiter *worker.Limiter

	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Transformer implements the Clean, Classify, Merge and Generate text
// transforms on top of a Provider. It keeps no state between calls.
type Transformer struct {
	provider Provider
	opts     TransformerOptions
	logger   *zap.Logger
}

// NewTransformer creates a Transformer for the provider
func NewTransformer(provider Provider, opts TransformerOptions) *Transformer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{
		provider: provider,
		opts:     opts,
		logger:   logger.With(zap.String("provider", provider.Name())),
	}
}

// Clean turns a raw document into an end-user Markdown body
func (t *Transformer) Clean(ctx context.Context, raw string) (string, error) {
	return t.call(ctx, CapabilityClean, cleanPrompt, renderInputs(
		promptInput{label: "text", value: raw},
	))
}

// Classify asks for the {"subject","feature"} payload of body against the rendered catalog
func (t *Transformer) Classify(ctx context.Context, body, catalog string) (string, error) {
	return t.call(ctx, CapabilityClassify, classifyPrompt, renderInputs(
		promptInput{label: "context", value: catalog},
		promptInput{label: "text", value: body},
	))
}

// Merge folds newBody into oldBody. newBody wins on conflicts.
func (t *Transformer) Merge(ctx context.Context, newBody, oldBody string) (string, error) {
	return t.call(ctx, CapabilityMerge, mergePrompt, renderInputs(
		promptInput{label: "history", value: oldBody},
		promptInput{label: "text", value: newBody},
	))
}

// Generate writes the article of the given kind from body. An empty
// priorArticle means the article is written from scratch.
func (t *Transformer) Generate(ctx context.Context, kind model.ArticleKind, body, priorArticle string) (string, error) {
	system, err := GeneratePrompt(kind)
	if err != nil {
		return "", err
	}
	return t.call(ctx, CapabilityGenerate, system, renderInputs(
		promptInput{label: "history", value: priorArticle},
		promptInput{label: "text", value: body},
	))
}

func (t *Transformer) call(ctx context.Context, capability Capability, system, prompt string) (string, error) {
	start := time.Now()
	text, err := t.complete(ctx, capability, system, prompt)
	elapsed := time.Since(start)

	if err != nil && t.opts.SoftFailures {
		t.opts.Metrics.ObserveTransform(string(capability), elapsed, fmt.Errorf("%w: %v", model.ErrSoftFailure, err))
		t.logger.Warn("transform failed, returning soft failure",
			zap.String("capability", string(capability)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return fmt.Sprintf("%s%s: %v", model.SoftFailurePrefix, capability, err), nil
	}

	t.opts.Metrics.ObserveTransform(string(capability), elapsed, err)
	if err != nil {
		t.logger.Warn("transform failed",
			zap.String("capability", string(capability)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", fmt.Errorf("%s: %w", capability, err)
	}

	t.logger.Debug("transform done",
		zap.String("capability", string(capability)),
		zap.Duration("elapsed", elapsed),
		zap.Int("output_bytes", len(text)))
	return text, nil
}

func (t *Transformer) complete(ctx context.Context, capability Capability, system, prompt string) (string, error) {
	if t.opts.Limiter != nil {
		if err := t.opts.Limiter.Wait(ctx, string(capability)); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	resp, err := t.provider.Complete(ctx, CompletionRequest{System: system, Prompt: prompt})
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", errEmptyCompletion
	}
	return resp.Text, nil
}
