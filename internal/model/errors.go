package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SoftFailurePrefix starts every degraded transform output, as in
// "Error in merge: context deadline exceeded"
const SoftFailurePrefix = "Error in "

// ErrSoftFailure marks transform output that is a degraded error text instead of content
var ErrSoftFailure = errors.New("transform returned a soft failure")

// ErrEmptyInput is the cause of an IngestionError for blank raw input
var ErrEmptyInput = errors.New("raw input is empty")

// IngestionError reports that the raw input could not be turned into a cleaned body.
// Fatal to the run.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("ingestion of %s failed: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("ingestion failed: %v", e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ClassificationError reports a failed classify call or a payload that is not
// exactly {"subject": ..., "feature": ...}. Fatal to the run.
type ClassificationError struct {
	Payload string
	Err     error
}

func (e *ClassificationError) Error() string {
	if e.Payload != "" {
		return fmt.Sprintf("classification failed: %v (payload: %q)", e.Err, truncate(e.Payload, 200))
	}
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// UnresolvedFeatureError reports a classification that matches no catalog
// entry exactly. Err is set when the lookup itself failed.
type UnresolvedFeatureError struct {
	Subject string
	Feature string
	Err     error
}

func (e *UnresolvedFeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve feature %q under subject %q: %v", e.Feature, e.Subject, e.Err)
	}
	return fmt.Sprintf("no feature %q under subject %q in catalog", e.Feature, e.Subject)
}

func (e *UnresolvedFeatureError) Unwrap() error { return e.Err }

// ReconcileStage names the step of a reconciliation that failed
type ReconcileStage string

const (
	StageLoad     ReconcileStage = "load"
	StageMerge    ReconcileStage = "merge"
	StageGenerate ReconcileStage = "generate"
	StageStore    ReconcileStage = "store"
	StageCommit   ReconcileStage = "commit"
)

// ReconciliationError reports a failure isolated to one article kind of a feature
type ReconciliationError struct {
	FeatureID   int            `json:"feature_id"`
	FeatureName string         `json:"feature_name"`
	Kind        ArticleKind    `json:"kind"`
	Stage       ReconcileStage `json:"stage"`
	Err         error          `json:"-"`
	Message     string         `json:"error"`
}

// NewReconciliationError builds a ReconciliationError for the feature and kind
func NewReconciliationError(f Feature, kind ArticleKind, stage ReconcileStage, err error) *ReconciliationError {
	return &ReconciliationError{
		FeatureID:   f.ID,
		FeatureName: f.Name,
		Kind:        kind,
		Stage:       stage,
		Err:         err,
		Message:     err.Error(),
	}
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s/%s (%s): %v", e.FeatureName, e.Kind, e.Stage, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// NotFoundError reports a content digest with no stored blob
type NotFoundError struct {
	Digest string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content %s not found", e.Digest)
}

// StorageWriteError reports a failed durable write
type StorageWriteError struct {
	Op  string // e.g. "write blob", "commit article"
	Key string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// IsSoftFailure reports whether transform output is a degraded error text
func IsSoftFailure(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), SoftFailurePrefix)
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
