package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/store"
)

// EditResult is the outcome of an edit re-entry: the replacement fragment
// (already committed) and the updated step status map.
type EditResult struct {
	Result     *StageResult
	StepStatus map[model.Stage]model.StepState
}

// EditController handles targeted regeneration of one stage on an
// already-progressed document. It is the only path permitted to overwrite
// a done stage's fragment. It holds the per-document lock from the
// stepStatus read through the commit, so two concurrent edits can never
// clobber each other's downstream resets.
type EditController struct {
	store   store.JobStore
	locks   store.Locker
	pub     ProgressPublisher
	adapter *Adapter
	retry   RetryPolicy
}

func NewEditController(st store.JobStore, locks store.Locker, pub ProgressPublisher, adapter *Adapter, retry RetryPolicy) *EditController {
	return &EditController{
		store:   st,
		locks:   locks,
		pub:     pub,
		adapter: adapter,
		retry:   retry,
	}
}

// ApplyEdit regenerates the target stage in revision mode and commits the
// replacement. Every stage strictly after the target resets to not-started;
// the target itself stays done (it was just overwritten), and nothing
// before it is touched. Downstream re-generation is deliberately not
// triggered here: the caller inspects the new fragment first and re-invokes
// the sequencer or the finalization chain when ready to pay for it.
func (c *EditController) ApplyEdit(ctx context.Context, jobID string, target model.Stage, instructions string) (*EditResult, error) {
	if _, err := ParseStage(string(target)); err != nil {
		return nil, err
	}

	release, err := c.locks.Acquire(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	doc := job.Document

	if doc.StepStateOf(target) != model.StepDone {
		return nil, fmt.Errorf("stage %q has no committed fragment to revise", target)
	}

	view, err := Filter(target, doc)
	if err != nil {
		return nil, err
	}

	prior, err := priorFragmentJSON(target, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract prior fragment: %w", err)
	}
	view.Revision = true
	view.PriorFragment = prior
	view.Instructions = instructions

	res, err := c.adapter.RunWithRetry(ctx, view, ModelConfig{}, c.retry)
	if err != nil {
		return nil, err
	}

	res.Fragment.Apply(doc)
	doc.SetAgentModel(target, res.Model)
	for _, downstream := range Downstream(target) {
		doc.SetStepState(downstream, model.StepNotStarted)
	}

	if job.Status == model.JobStatusComplete {
		job.Status = model.JobStatusPartiallyComplete
		job.CompletedAt = nil
	}
	// The cancel endpoint writes without the document lock; keep its flag
	if fresh, err := c.store.Get(ctx, jobID); err == nil && fresh.Canceled {
		job.Canceled = true
	}
	job.UpdatedAt = time.Now()
	if err := c.store.Save(ctx, job); err != nil {
		return nil, err
	}

	if c.pub != nil {
		c.pub.Publish(model.ProgressEvent{
			JobID:     jobID,
			Stage:     target,
			Status:    model.StepDone,
			Timestamp: time.Now(),
		})
	}

	status := make(map[model.Stage]model.StepState, len(doc.StepStatus))
	for k, v := range doc.StepStatus {
		status[k] = v
	}
	return &EditResult{Result: res, StepStatus: status}, nil
}
