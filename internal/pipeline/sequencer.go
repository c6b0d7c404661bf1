package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/store"
)

// ProgressPublisher is the push channel for committed pipeline transitions
type ProgressPublisher interface {
	Publish(ev model.ProgressEvent)
}

// Sequencer owns the canonical stage order. It advances a job stage by
// stage, merges fragments into the document, persists every transition and
// publishes progress events in commit order. A document's stages never run
// concurrently: the per-document lock is held for the duration of an
// advance.
type Sequencer struct {
	store   store.JobStore
	locks   store.Locker
	pub     ProgressPublisher
	adapter *Adapter
	retry   RetryPolicy
}

func NewSequencer(st store.JobStore, locks store.Locker, pub ProgressPublisher, adapter *Adapter, retry RetryPolicy) *Sequencer {
	return &Sequencer{
		store:   st,
		locks:   locks,
		pub:     pub,
		adapter: adapter,
		retry:   retry,
	}
}

// Run advances the job through every remaining stage in dependency order.
// Completed stages are skipped, so Run doubles as resume: after a pause on
// a missing credential or a transient failure it picks up from the first
// stage that is not done.
func (s *Sequencer) Run(ctx context.Context, jobID string) error {
	release, err := s.locks.Acquire(ctx, jobID)
	if err != nil {
		return err
	}
	defer release()

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}

	job.Status = model.JobStatusRunning
	job.PendingCredential = ""
	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}
	if err := s.persist(ctx, job); err != nil {
		return err
	}

	for _, stage := range StageOrder {
		if job.Document.StepStateOf(stage) == model.StepDone {
			continue
		}

		// Cancellation is a field on the record; observe writes made by
		// the cancel endpoint while this run holds the document lock.
		fresh, err := s.store.Get(ctx, jobID)
		if err == nil && fresh.Canceled {
			job.Canceled = true
			job.Status = model.JobStatusCanceled
			return s.persist(ctx, job)
		}

		if _, err := s.executeStage(ctx, job, stage, ModelConfig{}); err != nil {
			return err
		}
	}

	s.settle(job)
	return s.persist(ctx, job)
}

// RunStage advances exactly one stage through the sequencer's gate and
// commit path.
func (s *Sequencer) RunStage(ctx context.Context, jobID string, stage model.Stage, cfg ModelConfig) (*StageResult, error) {
	release, err := s.locks.Acquire(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, fmt.Errorf("job %s is %s and cannot advance", jobID, job.Status)
	}
	if job.Document.StepStateOf(stage) == model.StepDone {
		return nil, fmt.Errorf("stage %q is already done; use the edit endpoint to regenerate it", stage)
	}

	res, err := s.executeStage(ctx, job, stage, cfg)
	if err != nil {
		return nil, err
	}

	s.settle(job)
	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}
	return res, nil
}

// executeStage runs one stage and commits its fragment. The document is
// modified only here and in the edit controller.
func (s *Sequencer) executeStage(ctx context.Context, job *model.Job, stage model.Stage, cfg ModelConfig) (*StageResult, error) {
	doc := job.Document

	var notDone []string
	for _, dep := range DependenciesOf(stage) {
		if doc.StepStateOf(dep) != model.StepDone {
			notDone = append(notDone, string(dep))
		}
	}
	if len(notDone) > 0 {
		err := &IncompleteContextError{Stage: stage, Missing: notDone}
		s.fail(ctx, job, stage, err)
		return nil, err
	}

	view, err := Filter(stage, doc)
	if err != nil {
		s.fail(ctx, job, stage, err)
		return nil, err
	}

	doc.SetStepState(stage, model.StepInProgress)
	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}
	s.publish(job.ID, stage, model.StepInProgress)

	if cfg.Model == "" {
		cfg.Model = doc.AgentModelMapping[stage]
	}

	res, err := s.adapter.RunWithRetry(ctx, view, cfg, s.retry)
	if err != nil {
		return nil, s.handleStageError(ctx, job, stage, err)
	}

	// Commit exactly once: the fragment merges here and nowhere else
	res.Fragment.Apply(doc)
	doc.SetAgentModel(stage, res.Model)

	if stage == model.StageValidation && doc.ValidationResult != nil && !doc.ValidationResult.IsValid {
		doc.SetStepState(stage, model.StepFailed)
		job.Status = model.JobStatusPartiallyComplete
		if err := s.persist(ctx, job); err != nil {
			return nil, err
		}
		s.publish(job.ID, stage, model.StepFailed)
		return res, &ValidationFailedError{Result: doc.ValidationResult}
	}

	doc.SetStepState(stage, model.StepDone)
	if err := s.persist(ctx, job); err != nil {
		return nil, err
	}
	s.publish(job.ID, stage, model.StepDone)
	return res, nil
}

// handleStageError records the failure on the job per the error taxonomy
// and leaves the document's committed sections untouched.
func (s *Sequencer) handleStageError(ctx context.Context, job *model.Job, stage model.Stage, err error) error {
	doc := job.Document
	doc.SetStepState(stage, model.StepNotStarted)

	var missingCred *MissingCredentialError
	var overload *ProviderOverloadError

	switch {
	case errors.As(err, &missingCred):
		// Paused, not failed: resumable from this stage once the
		// credential is supplied.
		job.Status = model.JobStatusAwaitingCredential
		job.PendingCredential = missingCred.Name
	case errors.As(err, &overload):
		// Retries exhausted; the job stays resumable.
		job.Status = model.JobStatusPending
	default:
		msg := err.Error()
		job.Status = model.JobStatusFailed
		job.Error = &msg
	}

	if perr := s.persist(ctx, job); perr != nil {
		log.Printf("Failed to persist job %s after stage error: %v", job.ID, perr)
	}
	s.publish(job.ID, stage, model.StepNotStarted)
	return err
}

func (s *Sequencer) fail(ctx context.Context, job *model.Job, stage model.Stage, err error) {
	msg := err.Error()
	job.Status = model.JobStatusFailed
	job.Error = &msg
	if perr := s.persist(ctx, job); perr != nil {
		log.Printf("Failed to persist job %s after failure: %v", job.ID, perr)
	}
}

// settle derives the job-level status once no more stages can advance
func (s *Sequencer) settle(job *model.Job) {
	doc := job.Document
	if doc.FinalProduct != nil && doc.ValidationResult != nil && doc.ValidationResult.IsValid {
		job.Status = model.JobStatusComplete
		now := time.Now()
		job.CompletedAt = &now
		return
	}
	if job.Status == model.JobStatusRunning {
		// Some stages done, the run stopped without a terminal error
		done := 0
		for _, stage := range StageOrder {
			if doc.StepStateOf(stage) == model.StepDone {
				done++
			}
		}
		if done > 0 && done < len(StageOrder) {
			job.Status = model.JobStatusPartiallyComplete
		}
	}
}

// persist saves the job, first merging the Canceled flag from the stored
// record. The cancel endpoint writes without taking the document lock, so a
// cancel landing while a stage call is in flight must survive this run's
// next commit of its older in-memory copy.
func (s *Sequencer) persist(ctx context.Context, job *model.Job) error {
	if !job.Canceled {
		if fresh, err := s.store.Get(ctx, job.ID); err == nil && fresh.Canceled {
			job.Canceled = true
		}
	}
	job.UpdatedAt = time.Now()
	return s.store.Save(ctx, job)
}

func (s *Sequencer) publish(jobID string, stage model.Stage, status model.StepState) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(model.ProgressEvent{
		JobID:     jobID,
		Stage:     stage,
		Status:    status,
		Timestamp: time.Now(),
	})
}
