package e2e

import (
	"fmt"
	"testing"
)

func TestEditResetsDownstreamStages(t *testing.T) {
	ta := setupApp(t)
	jobID := createCompletedJob(t, ta.app)

	resp, err := doAuthRequest(t, ta.app, "POST", fmt.Sprintf("/api/jobs/%s/edit", jobID),
		`{"targetStage": "styling", "instructions": "switch to a dark theme"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 200)

	result := parseJSON(t, resp)
	if result["stage"] != "styling" {
		t.Errorf("unexpected stage %v", result["stage"])
	}
	stepStatus, _ := result["stepStatus"].(map[string]interface{})
	if stepStatus == nil {
		t.Fatalf("no stepStatus in response: %v", result)
	}
	if stepStatus["styling"] != "done" {
		t.Errorf("edited stage should stay done, got %v", stepStatus["styling"])
	}
	for _, stage := range []string{"assembly", "validation", "finalization"} {
		if stepStatus[stage] != "not-started" {
			t.Errorf("downstream stage %s: expected not-started, got %v", stage, stepStatus[stage])
		}
	}
	for _, stage := range []string{"function-planning", "state-design", "layout"} {
		if stepStatus[stage] != "done" {
			t.Errorf("upstream stage %s: expected done, got %v", stage, stepStatus[stage])
		}
	}

	// The job drops out of complete until the tail is regenerated
	resp, err = doAuthRequest(t, ta.app, "GET", fmt.Sprintf("/api/jobs/%s/status", jobID), "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	status := parseJSON(t, resp)
	if status["status"] != "partially-complete" {
		t.Errorf("expected partially-complete, got %v", status["status"])
	}
	if status["completedAt"] != nil {
		t.Error("completedAt should be cleared after an edit")
	}
}

func TestEditThenResumeRecompletes(t *testing.T) {
	ta := setupApp(t)
	jobID := createCompletedJob(t, ta.app)

	resp, err := doAuthRequest(t, ta.app, "POST", fmt.Sprintf("/api/jobs/%s/edit", jobID),
		`{"targetStage": "layout", "instructions": "stack the inputs vertically"}`)
	if err != nil {
		t.Fatalf("edit request failed: %v", err)
	}
	assertStatus(t, resp, 200)

	// Resume re-runs only the reset stages (the inline enqueuer is synchronous)
	resp, err = doAuthRequest(t, ta.app, "POST", fmt.Sprintf("/api/jobs/%s/resume", jobID), "")
	if err != nil {
		t.Fatalf("resume request failed: %v", err)
	}
	assertStatus(t, resp, 202)

	resp, err = doAuthRequest(t, ta.app, "GET", fmt.Sprintf("/api/jobs/%s/status", jobID), "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	status := parseJSON(t, resp)
	if status["status"] != "complete" {
		t.Errorf("expected complete after resume, got %v", status["status"])
	}
}

func TestEditMissingInstructions(t *testing.T) {
	ta := setupApp(t)
	jobID := createCompletedJob(t, ta.app)

	resp, err := doAuthRequest(t, ta.app, "POST", fmt.Sprintf("/api/jobs/%s/edit", jobID),
		`{"targetStage": "styling"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 400)
}

func TestEditUnknownJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/jobs/nope/edit",
		`{"targetStage": "styling", "instructions": "darker"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 404)
}
