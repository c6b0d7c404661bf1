package model

import (
	"encoding/json"
	"time"
)

// CreateJobRequest starts a new generation job. JobID is optional
// caller-assigned identity; when empty the server assigns one.
type CreateJobRequest struct {
	JobID             string           `json:"jobId,omitempty"`
	UserInput         UserInput        `json:"userInput" validate:"required"`
	BrainstormData    *BrainstormData  `json:"brainstormData" validate:"required"`
	AgentModelMapping map[Stage]string `json:"agentModelMapping,omitempty"`
}

type CreateJobResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type JobStatusResponse struct {
	JobID             string              `json:"jobId"`
	Status            JobStatus           `json:"status"`
	StepStatus        map[Stage]StepState `json:"stepStatus"`
	PendingCredential string              `json:"pendingCredential,omitempty"`
	Error             *string             `json:"error,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
	StartedAt         *time.Time          `json:"startedAt,omitempty"`
	CompletedAt       *time.Time          `json:"completedAt,omitempty"`
}

type JobResultResponse struct {
	JobID        string        `json:"jobId"`
	FinalProduct *FinalProduct `json:"finalProduct"`
}

type JobActionResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// StageRunRequest invokes one stage. With Isolated set, Document is required
// and the call is routed to the isolation harness without touching persisted
// state; otherwise JobID is required and the call advances the sequenced job.
type StageRunRequest struct {
	JobID    string                `json:"jobId,omitempty"`
	Document *ConstructionDocument `json:"document,omitempty"`
	Model    string                `json:"model,omitempty"`
	Isolated bool                  `json:"isolated,omitempty"`
}

type StageRunResponse struct {
	Success    bool                `json:"success"`
	Stage      Stage               `json:"stage"`
	Model      string              `json:"model,omitempty"`
	Fragment   json.RawMessage     `json:"updatedDocumentFragment,omitempty"`
	StepStatus map[Stage]StepState `json:"stepStatus,omitempty"`
}

type EditRequest struct {
	TargetStage  Stage  `json:"targetStage" validate:"required"`
	Instructions string `json:"instructions" validate:"required"`
}

type EditResponse struct {
	JobID      string              `json:"jobId"`
	Stage      Stage               `json:"stage"`
	Fragment   json.RawMessage     `json:"fragment"`
	StepStatus map[Stage]StepState `json:"stepStatus"`
}

// FinalizeRequest runs the assemble -> validate -> finalize sub-chain,
// either against a persisted job (JobID) or standalone against a supplied
// document.
type FinalizeRequest struct {
	JobID    string                `json:"jobId,omitempty"`
	Document *ConstructionDocument `json:"document,omitempty"`
	Model    string                `json:"model,omitempty"`
}

type FinalizeResponse struct {
	Success          bool              `json:"success"`
	FinalProduct     *FinalProduct     `json:"finalProduct,omitempty"`
	AssembledCode    string            `json:"assembledComponentCode,omitempty"`
	ValidationResult *ValidationResult `json:"validationResult,omitempty"`
	FailedStep       Stage             `json:"failedStep,omitempty"`
}

type ExportResponse struct {
	JobID string `json:"jobId"`
	Key   string `json:"key"`
	URL   string `json:"url"`
}
