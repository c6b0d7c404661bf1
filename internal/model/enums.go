package model

// Stage names the steps of the construction pipeline
type Stage string

const (
	StageFunctionPlanning Stage = "function-planning"
	StageStateDesign      Stage = "state-design"
	StageLayout           Stage = "layout"
	StageStyling          Stage = "styling"
	StageAssembly         Stage = "assembly"
	StageValidation       Stage = "validation"
	StageFinalization     Stage = "finalization"
)

// Job status
type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusRunning             JobStatus = "running"
	JobStatusAwaitingCredential  JobStatus = "awaiting-credential"
	JobStatusPartiallyComplete   JobStatus = "partially-complete"
	JobStatusComplete            JobStatus = "complete"
	JobStatusFailed              JobStatus = "failed"
	JobStatusCanceled            JobStatus = "canceled"
)

// Per-stage step state
type StepState string

const (
	StepNotStarted StepState = "not-started"
	StepInProgress StepState = "in-progress"
	StepDone       StepState = "done"
	StepFailed     StepState = "failed"
)

// Tool types the generator is tuned for. Free-form values are accepted;
// these are the ones the prompts carry dedicated guidance for.
type ToolType string

const (
	ToolTypeCalculator ToolType = "calculator"
	ToolTypeComparison ToolType = "comparison"
	ToolTypeAssessment ToolType = "assessment"
	ToolTypeQuiz       ToolType = "quiz"
)
