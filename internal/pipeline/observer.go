package pipeline

import "github.com/ppiankov/kbsync/internal/model"

// Observer receives progress callbacks from a run, on the goroutine that
// called Run.
type Observer interface {
	StateChanged(runID string, from, to State)
	Cleaned(runID, body string)
	Classified(c model.Classification, feature model.Feature)
	Reconciled(result model.SyncResult)
	ReconcileFailed(err *model.ReconciliationError)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) StateChanged(string, State, State)              {}
func (NopObserver) Cleaned(string, string)                         {}
func (NopObserver) Classified(model.Classification, model.Feature) {}
func (NopObserver) Reconciled(model.SyncResult)                    {}
func (NopObserver) ReconcileFailed(*model.ReconciliationError)     {}
