package model

import "time"

// Job is the persisted record for one generation request, keyed by ID in
// the job store. The document travels with the record so a single read is
// enough to resume or inspect a run.
type Job struct {
	ID       string                `json:"jobId"`
	Status   JobStatus             `json:"status"`
	Document *ConstructionDocument `json:"document"`

	// Error carries the terminal failure message when Status is failed
	Error *string `json:"error,omitempty"`

	// PendingCredential names the missing secret while Status is
	// awaiting-credential. The job resumes from the paused stage once the
	// credential is supplied.
	PendingCredential string `json:"pendingCredential,omitempty"`

	// Canceled is checked by the sequencer between stages. Cancellation is
	// a field on the record, not a process-wide flag.
	Canceled bool `json:"canceled,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the job can no longer advance
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusComplete, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}
