package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/store"
)

const TaskTypePipelineRun = "pipeline:run"

// PipelineTaskPayload is the asynq payload for a pipeline run
type PipelineTaskPayload struct {
	JobID string `json:"jobId"`
}

// Enqueuer hands a job off for background pipeline execution
type Enqueuer interface {
	EnqueuePipelineRun(ctx context.Context, jobID string) error
}

// AsynqEnqueuer implements Enqueuer on an asynq client
type AsynqEnqueuer struct {
	client    *asynq.Client
	retention time.Duration
}

func NewAsynqEnqueuer(client *asynq.Client, retention time.Duration) *AsynqEnqueuer {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &AsynqEnqueuer{client: client, retention: retention}
}

func (e *AsynqEnqueuer) EnqueuePipelineRun(ctx context.Context, jobID string) error {
	data, err := json.Marshal(PipelineTaskPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := asynq.NewTask(TaskTypePipelineRun, data)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue("pipeline"),
		asynq.MaxRetry(3),
		asynq.Retention(e.retention),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// JobService manages job lifecycle: creation, status, cancellation and
// resumption. Stage execution itself belongs to the pipeline worker.
type JobService struct {
	store    store.JobStore
	enqueuer Enqueuer
}

func NewJobService(st store.JobStore, enqueuer Enqueuer) *JobService {
	return &JobService{store: st, enqueuer: enqueuer}
}

// Create records a new job around a fresh construction document and queues
// the pipeline run. A caller-assigned jobId is honored unless it collides
// with an existing record.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.CreateJobResponse, error) {
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	} else if _, err := s.store.Get(ctx, jobID); err == nil {
		return nil, fmt.Errorf("job %s already exists", jobID)
	}

	doc := model.NewConstructionDocument(req.UserInput, req.BrainstormData)
	for stage, m := range req.AgentModelMapping {
		doc.SetAgentModel(stage, m)
	}

	now := time.Now()
	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusPending,
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.enqueuer.EnqueuePipelineRun(ctx, jobID); err != nil {
		return nil, err
	}

	return &model.CreateJobResponse{
		JobID:     jobID,
		Status:    job.Status,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the job-level status plus the per-stage step map
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := make(map[model.Stage]model.StepState, len(job.Document.StepStatus))
	for k, v := range job.Document.StepStatus {
		status[k] = v
	}

	return &model.JobStatusResponse{
		JobID:             job.ID,
		Status:            job.Status,
		StepStatus:        status,
		PendingCredential: job.PendingCredential,
		Error:             job.Error,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
	}, nil
}

// GetResult returns the final product of a completed job
func (s *JobService) GetResult(ctx context.Context, jobID string) (*model.JobResultResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusComplete || job.Document.FinalProduct == nil {
		return nil, fmt.Errorf("job not completed")
	}

	return &model.JobResultResponse{
		JobID:        job.ID,
		FinalProduct: job.Document.FinalProduct,
	}, nil
}

// GetDocument returns the full construction document for inspection
func (s *JobService) GetDocument(ctx context.Context, jobID string) (*model.ConstructionDocument, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Document, nil
}

// Cancel marks the job canceled. A run in flight observes the flag between
// stages; a queued or paused job flips to canceled immediately.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.JobActionResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, fmt.Errorf("job already %s", job.Status)
	}

	job.Canceled = true
	if job.Status != model.JobStatusRunning {
		job.Status = model.JobStatusCanceled
		now := time.Now()
		job.CompletedAt = &now
	}
	job.UpdatedAt = time.Now()

	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}

	return &model.JobActionResponse{JobID: jobID, Status: job.Status}, nil
}

// Resume re-queues a paused or partially-complete job. The sequencer skips
// stages already done, so the run picks up at the first incomplete stage.
func (s *JobService) Resume(ctx context.Context, jobID string) (*model.JobActionResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, fmt.Errorf("job is %s and cannot resume", job.Status)
	}
	if job.Status == model.JobStatusRunning {
		return nil, fmt.Errorf("job is already running")
	}

	if err := s.enqueuer.EnqueuePipelineRun(ctx, jobID); err != nil {
		return nil, err
	}

	return &model.JobActionResponse{JobID: jobID, Status: model.JobStatusPending}, nil
}
