package model

import "time"

// RunReport is the outcome of one synchronization run
type RunReport struct {
	RunID      string                 `json:"run_id"`
	Source     string                 `json:"source,omitempty"` // Where the raw input came from
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Feature    Feature                `json:"feature"`
	Status     RunStatus              `json:"status"`
	Results    []SyncResult           `json:"results"`            // One per reconciled article kind
	Failures   []*ReconciliationError `json:"failures,omitempty"` // One per failed article kind
}

// SyncResult is emitted for every committed (feature, kind) reconciliation
type SyncResult struct {
	FeatureID      int         `json:"feature_id"`
	FeatureName    string      `json:"feature_name"`
	Kind           ArticleKind `json:"kind"`
	Version        int         `json:"version"`
	DocumentDigest string      `json:"document_digest"`
	ArticleDigest  string      `json:"article_digest"`
	Merged         bool        `json:"merged"` // True when a prior record existed
}

// RunStatus summarizes how a run ended
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded" // Every declared kind reconciled
	RunPartial   RunStatus = "partial"   // At least one kind reconciled and at least one failed
	RunFailed    RunStatus = "failed"    // Every declared kind failed
)

// StatusFor derives the run status from result and failure counts
func StatusFor(succeeded, failed int) RunStatus {
	switch {
	case failed == 0:
		return RunSucceeded
	case succeeded == 0:
		return RunFailed
	default:
		return RunPartial
	}
}

// Duration returns how long the run took
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
