package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/toolforge/api/internal/auth"
	"github.com/toolforge/api/internal/handler"
	"github.com/toolforge/api/internal/middleware"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/pipeline"
	"github.com/toolforge/api/internal/service"
	"github.com/toolforge/api/internal/store"
)

const testJWTSecret = "test-secret-for-e2e"

// componentCode is a canned assembled unit that passes static validation.
const componentCode = `import React from "react";

const TipCalculator = () => {
  const [billAmount, setBillAmount] = React.useState(50);
  const [tipPercent, setTipPercent] = React.useState(18);

  const tipAmount = billAmount * tipPercent / 100;

  return (
    <div className="tip-calculator">
      <input aria-label="Bill amount" type="number" value={billAmount} onChange={(e) => setBillAmount(Number(e.target.value))} />
      <input aria-label="Tip percent" type="number" value={tipPercent} onChange={(e) => setTipPercent(Number(e.target.value))} />
      <p className="result">{tipAmount}</p>
    </div>
  );
};

export default TipCalculator;
`

// scriptedGenerator serves canned structured outputs per stage so e2e runs
// never reach a real provider.
type scriptedGenerator struct {
	mu      sync.Mutex
	outputs map[model.Stage]json.RawMessage
}

func newScriptedGenerator() *scriptedGenerator {
	code, _ := json.Marshal(map[string]string{"componentCode": componentCode})
	return &scriptedGenerator{
		outputs: map[model.Stage]json.RawMessage{
			model.StageFunctionPlanning: json.RawMessage(`{"signatures":[{"name":"calculateTip","parameters":[{"name":"billAmount","type":"number"},{"name":"tipPercent","type":"number"}],"returns":"number"}]}`),
			model.StageStateDesign:      json.RawMessage(`{"variables":[{"name":"billAmount","type":"number","initialValue":"50"},{"name":"tipPercent","type":"number","initialValue":"18"}],"functions":[{"name":"calculateTip","statements":["return billAmount * tipPercent / 100;"],"dependsOn":["billAmount","tipPercent"]}]}`),
			model.StageLayout:           json.RawMessage(`{"markup":"<div className=\"tip-calculator\"><input aria-label=\"Bill amount\" /><p className=\"result\">{tipAmount}</p></div>","elementIds":["bill-amount","tip-result"],"usedIdentifiers":["billAmount","tipPercent","tipAmount"]}`),
			model.StageStyling:          json.RawMessage(`{"theme":"light","rules":[{"selector":".tip-calculator","declarations":"display: flex; gap: 8px;"}]}`),
			model.StageAssembly:         json.RawMessage(code),
			model.StageFinalization:     json.RawMessage(`{"title":"Tip Calculator","description":"Splits the tip fairly","slug":"tip-calculator"}`),
		},
	}
}

func (g *scriptedGenerator) GenerateStructured(ctx context.Context, req pipeline.GenerationRequest) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	raw, ok := g.outputs[req.Stage]
	if !ok {
		return nil, fmt.Errorf("no scripted output for stage %q", req.Stage)
	}
	return raw, nil
}

func (g *scriptedGenerator) MissingCredential() string { return "" }

// inlineEnqueuer runs the pipeline synchronously in place of asynq, so a
// created job is fully settled by the time the create call returns. Pipeline
// errors land on the job record, matching the worker's behavior.
type inlineEnqueuer struct {
	sequencer *pipeline.Sequencer
}

func (e *inlineEnqueuer) EnqueuePipelineRun(ctx context.Context, jobID string) error {
	_ = e.sequencer.Run(ctx, jobID)
	return nil
}

type testApp struct {
	app   *fiber.App
	store store.JobStore
}

// setupApp builds the Fiber app the way main.go does, with in-memory
// persistence and a scripted provider.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()
	jobStore := store.NewMemoryStore()
	locker := store.NewMemoryLocker()

	gen := newScriptedGenerator()
	adapter := pipeline.NewAdapter(gen, pipeline.AdapterOptions{DefaultModel: "test-model"})
	retry := pipeline.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	sequencer := pipeline.NewSequencer(jobStore, locker, nil, adapter, retry)
	harness := pipeline.NewHarness(adapter, retry)
	editor := pipeline.NewEditController(jobStore, locker, nil, adapter, retry)
	finalizer := pipeline.NewFinalizer(adapter, retry)

	jobService := service.NewJobService(jobStore, &inlineEnqueuer{sequencer: sequencer})
	pipelineService := service.NewPipelineService(jobStore, locker, sequencer, harness, editor, finalizer)
	exportService := service.NewExportService(jobStore, nil) // storage unconfigured

	jobHandler := handler.NewJobHandler(jobService, validate)
	stageHandler := handler.NewStageHandler(pipelineService, validate)
	editHandler := handler.NewEditHandler(pipelineService, validate)
	finalizeHandler := handler.NewFinalizeHandler(pipelineService, validate)
	exportHandler := handler.NewExportHandler(exportService)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"provider": true,
				"redis":    false,
				"r2":       false,
				"auth":     true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes without rate limiters (no Redis in tests)
	api := app.Group("/api", authMiddleware.Authenticate())

	jobs := api.Group("/jobs")
	jobs.Post("", jobHandler.Create)
	jobs.Get("/:jobId/status", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)
	jobs.Get("/:jobId/document", jobHandler.Document)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)
	jobs.Post("/:jobId/resume", jobHandler.Resume)
	jobs.Post("/:jobId/edit", editHandler.Edit)
	jobs.Post("/:jobId/export", exportHandler.Export)

	api.Post("/stages/:stage/run", stageHandler.Run)
	api.Post("/finalize", finalizeHandler.Finalize)

	return &testApp{app: app, store: jobStore}
}

// createJobBody is a valid job creation payload
const createJobBody = `{
	"userInput": {"description": "Tip calculator for restaurant patrons", "toolType": "calculator"},
	"brainstormData": {
		"coreConcept": "Compute the tip from the bill and a percentage",
		"suggestedInputs": [
			{"name": "billAmount", "type": "number", "label": "Bill amount"},
			{"name": "tipPercent", "type": "number", "label": "Tip percent"}
		],
		"calculationSpecs": [{"name": "tipAmount", "formula": "billAmount * tipPercent / 100"}]
	}
}`

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "toolforge-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createCompletedJob creates a job through the API and returns its id. The
// inline enqueuer runs the pipeline synchronously, so the job is complete on
// return.
func createCompletedJob(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := doAuthRequest(t, app, "POST", "/api/jobs", createJobBody)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	assertStatus(t, resp, 202)
	result := parseJSON(t, resp)
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("no jobId in response: %v", result)
	}
	return jobID
}
