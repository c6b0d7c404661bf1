package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/store"
)

// testComponentCode is a canned assembled unit that passes static
// validation: default export, declared identifiers, labeled inputs.
const testComponentCode = `import React from "react";

function formatCurrency(value) {
  return "$" + value.toFixed(2);
}

const MortgageCalculator = () => {
  const [loanAmount, setLoanAmount] = React.useState(250000);
  const [interestRate, setInterestRate] = React.useState(6.5);
  const [termYears, setTermYears] = React.useState(30);

  const monthlyRate = interestRate / 100 / 12;
  const payments = termYears * 12;
  const monthlyPayment = loanAmount * monthlyRate / (1 - Math.pow(1 + monthlyRate, -payments));

  return (
    <div className="mortgage-calculator">
      <input aria-label="Loan amount" type="number" value={loanAmount} onChange={(e) => setLoanAmount(Number(e.target.value))} />
      <input aria-label="Interest rate" type="number" value={interestRate} onChange={(e) => setInterestRate(Number(e.target.value))} />
      <input aria-label="Term in years" type="number" value={termYears} onChange={(e) => setTermYears(Number(e.target.value))} />
      <p className="result">{formatCurrency(monthlyPayment)}</p>
    </div>
  );
};

export default MortgageCalculator;
`

// brokenComponentCode fails static validation (eval and an undeclared
// identifier in a JSX expression).
const brokenComponentCode = `const Broken = () => {
  const total = eval("1 + 1");
  return <p>{grandTotal}</p>;
};
export default Broken;
`

func rawFunctionPlan() json.RawMessage {
	return json.RawMessage(`{"signatures":[{"name":"calculateMonthlyPayment","description":"Computes the monthly payment","parameters":[{"name":"loanAmount","type":"number"},{"name":"interestRate","type":"number"},{"name":"termYears","type":"number"}],"returns":"number"}]}`)
}

func rawStateDesign() json.RawMessage {
	return json.RawMessage(`{"variables":[{"name":"loanAmount","type":"number","initialValue":"250000"},{"name":"interestRate","type":"number","initialValue":"6.5"},{"name":"termYears","type":"number","initialValue":"30"}],"functions":[{"name":"calculateMonthlyPayment","statements":["const monthlyRate = interestRate / 100 / 12;","const payments = termYears * 12;","return loanAmount * monthlyRate / (1 - Math.pow(1 + monthlyRate, -payments));"],"dependsOn":["loanAmount","interestRate","termYears"]}]}`)
}

func rawLayout() json.RawMessage {
	return json.RawMessage(`{"markup":"<div className=\"mortgage-calculator\"><input aria-label=\"Loan amount\" /><p className=\"result\">{monthlyPayment}</p></div>","elementIds":["loan-amount","monthly-payment"],"usedIdentifiers":["loanAmount","interestRate","termYears","monthlyPayment"]}`)
}

func rawStyling() json.RawMessage {
	return json.RawMessage(`{"theme":"light","rules":[{"selector":".mortgage-calculator","declarations":"display: flex; flex-direction: column; gap: 12px;"},{"selector":".result","declarations":"font-weight: 700;"}]}`)
}

func rawAssembly(code string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"componentCode": code})
	return b
}

func rawFinalize() json.RawMessage {
	return json.RawMessage(`{"title":"Mortgage Payment Calculator","description":"Estimates monthly mortgage payments","slug":"mortgage-payment-calculator"}`)
}

// genResult is one scripted generator response
type genResult struct {
	raw json.RawMessage
	err error
}

// fakeGenerator serves canned structured outputs per stage. Per-stage
// override queues are consumed before the defaults, so tests can inject
// transient failures or malformed payloads for specific calls.
type fakeGenerator struct {
	mu        sync.Mutex
	defaults  map[model.Stage]json.RawMessage
	overrides map[model.Stage][]genResult
	missing   string
	calls     map[model.Stage]int
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		defaults: map[model.Stage]json.RawMessage{
			model.StageFunctionPlanning: rawFunctionPlan(),
			model.StageStateDesign:      rawStateDesign(),
			model.StageLayout:           rawLayout(),
			model.StageStyling:          rawStyling(),
			model.StageAssembly:         rawAssembly(testComponentCode),
			model.StageFinalization:     rawFinalize(),
		},
		overrides: make(map[model.Stage][]genResult),
		calls:     make(map[model.Stage]int),
	}
}

func (g *fakeGenerator) push(stage model.Stage, results ...genResult) {
	g.mu.Lock()
	g.overrides[stage] = append(g.overrides[stage], results...)
	g.mu.Unlock()
}

func (g *fakeGenerator) callCount(stage model.Stage) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[stage]
}

func (g *fakeGenerator) setMissing(name string) {
	g.mu.Lock()
	g.missing = name
	g.mu.Unlock()
}

func (g *fakeGenerator) GenerateStructured(ctx context.Context, req GenerationRequest) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[req.Stage]++

	if queue := g.overrides[req.Stage]; len(queue) > 0 {
		next := queue[0]
		g.overrides[req.Stage] = queue[1:]
		return next.raw, next.err
	}

	raw, ok := g.defaults[req.Stage]
	if !ok {
		return nil, fmt.Errorf("no scripted output for stage %q", req.Stage)
	}
	return raw, nil
}

func (g *fakeGenerator) MissingCredential() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.missing
}

// eventCollector records progress events in publish order
type eventCollector struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (c *eventCollector) Publish(ev model.ProgressEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *eventCollector) all() []model.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ProgressEvent, len(c.events))
	copy(out, c.events)
	return out
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newTestAdapter(gen Generator) *Adapter {
	return NewAdapter(gen, AdapterOptions{DefaultModel: "test-model"})
}

func newTestDocument() *model.ConstructionDocument {
	return model.NewConstructionDocument(
		model.UserInput{
			Description: "Monthly mortgage payment estimator for first-time buyers",
			ToolType:    "calculator",
		},
		&model.BrainstormData{
			CoreConcept:      "Estimate monthly mortgage payments from loan terms",
			ValueProposition: "Instant payment clarity without a loan officer",
			CalculationSpecs: []model.CalculationSpec{
				{Name: "monthlyPayment", Formula: "P * r / (1 - (1+r)^-n)"},
			},
			SuggestedInputs: []model.SuggestedInput{
				{Name: "loanAmount", Type: "number", Label: "Loan amount"},
				{Name: "interestRate", Type: "number", Label: "Interest rate"},
				{Name: "termYears", Type: "number", Label: "Term in years"},
			},
			InteractionFlow: []string{"enter loan terms", "see monthly payment"},
			ResearchNotes:   "internal provenance, never shown to stages",
		},
	)
}

func saveTestJob(t *testing.T, st store.JobStore, jobID string) *model.Job {
	t.Helper()
	now := time.Now()
	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusPending,
		Document:  newTestDocument(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.Save(context.Background(), job); err != nil {
		t.Fatalf("failed to save test job: %v", err)
	}
	return job
}
