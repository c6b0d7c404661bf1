package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/pipeline"
	"github.com/toolforge/api/internal/store"
)

// PipelineService is the synchronous surface over the pipeline: single
// stage runs, isolated runs, edit re-entry and the finalization sub-chain.
// Full background runs go through the job service and the worker instead.
type PipelineService struct {
	store     store.JobStore
	locks     store.Locker
	sequencer *pipeline.Sequencer
	harness   *pipeline.Harness
	editor    *pipeline.EditController
	finalizer *pipeline.Finalizer
}

func NewPipelineService(
	st store.JobStore,
	locks store.Locker,
	sequencer *pipeline.Sequencer,
	harness *pipeline.Harness,
	editor *pipeline.EditController,
	finalizer *pipeline.Finalizer,
) *PipelineService {
	return &PipelineService{
		store:     st,
		locks:     locks,
		sequencer: sequencer,
		harness:   harness,
		editor:    editor,
		finalizer: finalizer,
	}
}

// RunStage executes one stage. Isolated runs take a caller-supplied document
// and leave no trace in the store; sequenced runs advance the persisted job
// through the dependency gate and commit path.
func (s *PipelineService) RunStage(ctx context.Context, stage model.Stage, req *model.StageRunRequest) (*model.StageRunResponse, error) {
	if req.Isolated {
		if req.Document == nil {
			return nil, fmt.Errorf("isolated runs require a document")
		}
		res, err := s.harness.RunIsolated(ctx, stage, req.Document, pipeline.ModelConfig{Model: req.Model})
		if err != nil {
			return nil, err
		}
		return &model.StageRunResponse{
			Success:  true,
			Stage:    stage,
			Model:    res.Model,
			Fragment: res.Raw,
		}, nil
	}

	if req.JobID == "" {
		return nil, fmt.Errorf("jobId is required for sequenced runs")
	}
	res, err := s.sequencer.RunStage(ctx, req.JobID, stage, pipeline.ModelConfig{Model: req.Model})
	if err != nil {
		return nil, err
	}

	job, err := s.store.Get(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	status := make(map[model.Stage]model.StepState, len(job.Document.StepStatus))
	for k, v := range job.Document.StepStatus {
		status[k] = v
	}

	return &model.StageRunResponse{
		Success:    true,
		Stage:      stage,
		Model:      res.Model,
		Fragment:   res.Raw,
		StepStatus: status,
	}, nil
}

// Edit regenerates one committed stage with caller instructions
func (s *PipelineService) Edit(ctx context.Context, jobID string, req *model.EditRequest) (*model.EditResponse, error) {
	res, err := s.editor.ApplyEdit(ctx, jobID, req.TargetStage, req.Instructions)
	if err != nil {
		return nil, err
	}
	return &model.EditResponse{
		JobID:      jobID,
		Stage:      req.TargetStage,
		Fragment:   res.Result.Raw,
		StepStatus: res.StepStatus,
	}, nil
}

// Finalize runs the assemble -> validate -> finalize sub-chain. With a
// jobId the chain runs against the persisted document under the document
// lock and the outcome is saved; with an inline document nothing persists.
// A validation rejection is an in-band outcome, not a transport error.
func (s *PipelineService) Finalize(ctx context.Context, req *model.FinalizeRequest) (*model.FinalizeResponse, error) {
	cfg := pipeline.ModelConfig{Model: req.Model}

	if req.JobID != "" {
		return s.finalizeJob(ctx, req.JobID, cfg)
	}
	if req.Document == nil {
		return nil, fmt.Errorf("either jobId or document is required")
	}
	return chainResponse(s.finalizer.RunChain(ctx, req.Document, cfg))
}

func (s *PipelineService) finalizeJob(ctx context.Context, jobID string, cfg pipeline.ModelConfig) (*model.FinalizeResponse, error) {
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
		return nil, fmt.Errorf("job %s is %s and cannot finalize", jobID, job.Status)
	}

	chain := s.finalizer.RunChain(ctx, job.Document, cfg)

	var validationErr *pipeline.ValidationFailedError
	if chain.Success() {
		job.Status = model.JobStatusComplete
		now := time.Now()
		job.CompletedAt = &now
	} else if errors.As(chain.Err, &validationErr) {
		job.Status = model.JobStatusPartiallyComplete
	}
	job.UpdatedAt = time.Now()
	if saveErr := s.store.Save(ctx, job); saveErr != nil {
		return nil, saveErr
	}

	return chainResponse(chain)
}

// chainResponse maps a chain outcome onto the response shape. Validation
// rejections surface in-band with diagnostics; everything else is an error.
func chainResponse(chain *pipeline.ChainResult) (*model.FinalizeResponse, error) {
	resp := &model.FinalizeResponse{
		Success:          chain.Success(),
		FinalProduct:     chain.FinalProduct,
		AssembledCode:    chain.AssembledCode,
		ValidationResult: chain.ValidationResult,
		FailedStep:       chain.FailedStep,
	}
	if chain.Err != nil {
		var validationErr *pipeline.ValidationFailedError
		if errors.As(chain.Err, &validationErr) {
			return resp, nil
		}
		return nil, chain.Err
	}
	return resp, nil
}
