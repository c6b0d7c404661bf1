package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/toolforge/api/internal/model"
)

// Generator is the external structured-generation capability: invoke a
// model with a schema, get a structured result. Implementations return
// *ProviderOverloadError for transient overload so callers can apply the
// retry policy, and report the name of a missing required credential via
// MissingCredential.
type Generator interface {
	GenerateStructured(ctx context.Context, req GenerationRequest) (json.RawMessage, error)
	MissingCredential() string
}

// GenerationRequest is one structured-generation call
type GenerationRequest struct {
	Stage  model.Stage
	Model  string
	System string
	User   string
	Schema json.RawMessage
}

// ModelConfig overrides the model identifier for one invocation
type ModelConfig struct {
	Model string
}

// StageResult is the outcome of one stage invocation. The fragment is
// unapplied; committing it to a document is the caller's decision.
type StageResult struct {
	Stage    model.Stage
	Model    string
	Fragment Fragment
	Raw      json.RawMessage
	Attempts int
}

// AdapterOptions configure stage-to-model resolution and the per-call
// wall-clock budget.
type AdapterOptions struct {
	DefaultModel string
	StageModels  map[model.Stage]string
	CallTimeout  time.Duration
}

// Adapter wraps one generation step: it builds the stage instruction
// payload from a filtered view, invokes the generator, and validates the
// structured result against the stage schema. It never writes to the
// document.
type Adapter struct {
	generator   Generator
	defaults    map[model.Stage]string
	fallback    string
	callTimeout time.Duration
}

func NewAdapter(g Generator, opts AdapterOptions) *Adapter {
	return &Adapter{
		generator:   g,
		defaults:    opts.StageModels,
		fallback:    opts.DefaultModel,
		callTimeout: opts.CallTimeout,
	}
}

// ResolveModel picks the model identifier for a stage: explicit override,
// then per-stage default, then the global fallback.
func (a *Adapter) ResolveModel(stage model.Stage, cfg ModelConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	if m, ok := a.defaults[stage]; ok && m != "" {
		return m
	}
	return a.fallback
}

// Run executes one stage invocation against the view. The validation stage
// is deterministic static analysis and never reaches the provider; every
// other stage is a structured-generation call.
func (a *Adapter) Run(ctx context.Context, view *StageView, cfg ModelConfig) (*StageResult, error) {
	if view.Stage == model.StageValidation {
		result := ValidateComponent(view.AssembledCode)
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return &StageResult{
			Stage:    view.Stage,
			Model:    "static",
			Fragment: &ValidationFragment{ValidationResult: result},
			Raw:      raw,
			Attempts: 1,
		}, nil
	}

	if name := a.generator.MissingCredential(); name != "" {
		return nil, &MissingCredentialError{Name: name}
	}

	modelID := a.ResolveModel(view.Stage, cfg)
	req := GenerationRequest{
		Stage:  view.Stage,
		Model:  modelID,
		System: buildSystemPrompt(view.Stage),
		User:   buildUserPrompt(view),
		Schema: StageSchema(view.Stage),
	}

	callCtx := ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	raw, err := a.generator.GenerateStructured(callCtx, req)
	if err != nil {
		// An exceeded call budget is a transient failure, not a permanent one
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &ProviderOverloadError{Err: err}
		}
		return nil, err
	}

	fragment, err := DecodeFragment(view.Stage, raw)
	if err != nil {
		return nil, err
	}

	return &StageResult{
		Stage:    view.Stage,
		Model:    modelID,
		Fragment: fragment,
		Raw:      raw,
		Attempts: 1,
	}, nil
}
