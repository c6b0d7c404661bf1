package pipeline

import (
	"context"

	"github.com/toolforge/api/internal/model"
)

// Harness runs a single stage against a caller-supplied document without
// the sequencer's dependency gate or commit step. It never touches the job
// store; the caller receives the raw result and decides whether to merge
// it. Callers accept responsibility for document coherence: the document
// may be synthetic, with upstream sections fabricated by hand.
type Harness struct {
	adapter *Adapter
	retry   RetryPolicy
}

func NewHarness(adapter *Adapter, retry RetryPolicy) *Harness {
	return &Harness{adapter: adapter, retry: retry}
}

// RunIsolated executes one stage against the document. The stage's required
// sections must still be present (the context filter does not default
// missing data), but stepStatus is ignored entirely.
func (h *Harness) RunIsolated(ctx context.Context, stage model.Stage, doc *model.ConstructionDocument, cfg ModelConfig) (*StageResult, error) {
	view, err := Filter(stage, doc)
	if err != nil {
		return nil, err
	}
	return h.adapter.RunWithRetry(ctx, view, cfg, h.retry)
}
