package model

import "time"

// ProgressEvent is one committed pipeline transition, pushed to subscribers
// of a job's progress channel in commit order.
type ProgressEvent struct {
	JobID     string    `json:"jobId"`
	Stage     Stage     `json:"stage"`
	Status    StepState `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage wraps a progress event for the wire
type WSProgressMessage struct {
	Type      string    `json:"type"`
	JobID     string    `json:"jobId"`
	Stage     Stage     `json:"stage"`
	Status    StepState `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WSCompleteMessage announces the final product
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage reports a terminal or pausing failure
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries the failure code and message
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
