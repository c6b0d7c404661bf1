package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/pipeline"
	"github.com/toolforge/api/internal/service"
	"github.com/toolforge/api/internal/store"
	"github.com/toolforge/api/internal/websocket"
	"github.com/toolforge/api/pkg/response"
)

// PipelineWorker drives queued pipeline runs through the sequencer
type PipelineWorker struct {
	sequencer *pipeline.Sequencer
	store     store.JobStore
	hub       *websocket.Hub
}

func NewPipelineWorker(sequencer *pipeline.Sequencer, st store.JobStore, hub *websocket.Hub) *PipelineWorker {
	return &PipelineWorker{
		sequencer: sequencer,
		store:     st,
		hub:       hub,
	}
}

// ProcessTask handles one pipeline run. The error taxonomy decides the
// queue's behavior: overload bubbles up so asynq retries the task; paused
// and terminal failures consume the task.
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.PipelineTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := payload.JobID
	log.Printf("Starting pipeline run for job %s", jobID)

	err := w.sequencer.Run(ctx, jobID)
	if err == nil {
		w.announce(ctx, jobID)
		return nil
	}

	var missingCred *pipeline.MissingCredentialError
	var schemaErr *pipeline.SchemaViolationError
	var contextErr *pipeline.IncompleteContextError
	var validationErr *pipeline.ValidationFailedError
	var overload *pipeline.ProviderOverloadError

	switch {
	case errors.As(err, &missingCred):
		// Paused, not failed. The record holds the credential name; the
		// task is done until a resume is requested.
		log.Printf("Job %s paused awaiting credential %q", jobID, missingCred.Name)
		w.hub.BroadcastError(jobID, response.CodeMissingCredential, err.Error())
		return nil

	case errors.As(err, &overload):
		// Sequencer retries are exhausted; let asynq back off and re-run.
		log.Printf("Job %s hit provider overload, requeueing: %v", jobID, err)
		return err

	case errors.As(err, &schemaErr):
		w.hub.BroadcastError(jobID, response.CodeSchemaViolation, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)

	case errors.As(err, &contextErr):
		w.hub.BroadcastError(jobID, response.CodeIncompleteContext, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)

	case errors.As(err, &validationErr):
		w.hub.BroadcastError(jobID, response.CodeValidationFailed, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)

	default:
		w.hub.BroadcastError(jobID, response.CodeJobFailed, err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
}

// announce pushes the final product to subscribers when the run finished
// the whole pipeline. A run can also end canceled or partially complete;
// those states travel through progress events only.
func (w *PipelineWorker) announce(ctx context.Context, jobID string) {
	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		log.Printf("Failed to load job %s after run: %v", jobID, err)
		return
	}
	if job.Status == model.JobStatusComplete && job.Document.FinalProduct != nil {
		w.hub.BroadcastComplete(jobID, job.Document.FinalProduct)
		log.Printf("Pipeline run for job %s completed", jobID)
	}
}
