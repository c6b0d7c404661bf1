package pipeline

import (
	"context"

	"github.com/toolforge/api/internal/model"
)

// ChainResult carries the finalization sub-chain's outputs, including
// partial results when a step fails: the caller can inspect how far the
// chain got.
type ChainResult struct {
	AssembledCode    string
	ValidationResult *model.ValidationResult
	FinalProduct     *model.FinalProduct
	FailedStep       model.Stage
	Err              error
}

// Success reports whether all three steps passed
func (r *ChainResult) Success() bool {
	return r.Err == nil && r.FinalProduct != nil
}

// Finalizer runs the fixed assemble -> validate -> finalize tail standalone
// against any document holding the state-logic, layout and styling
// fragments. Fragments are applied to the supplied document; persisting it
// is the caller's concern.
type Finalizer struct {
	adapter *Adapter
	retry   RetryPolicy
}

func NewFinalizer(adapter *Adapter, retry RetryPolicy) *Finalizer {
	return &Finalizer{adapter: adapter, retry: retry}
}

// runStep executes one chain step against doc and applies its fragment
func (f *Finalizer) runStep(ctx context.Context, stage model.Stage, doc *model.ConstructionDocument, cfg ModelConfig) (*StageResult, error) {
	view, err := Filter(stage, doc)
	if err != nil {
		return nil, err
	}
	res, err := f.adapter.RunWithRetry(ctx, view, cfg, f.retry)
	if err != nil {
		return nil, err
	}
	res.Fragment.Apply(doc)
	doc.SetStepState(stage, model.StepDone)
	return res, nil
}

// Assemble runs only the assemble step
func (f *Finalizer) Assemble(ctx context.Context, doc *model.ConstructionDocument, cfg ModelConfig) (*StageResult, error) {
	return f.runStep(ctx, model.StageAssembly, doc, cfg)
}

// Validate runs only the validate step
func (f *Finalizer) Validate(ctx context.Context, doc *model.ConstructionDocument, cfg ModelConfig) (*StageResult, error) {
	return f.runStep(ctx, model.StageValidation, doc, cfg)
}

// Finalize runs only the finalize step
func (f *Finalizer) Finalize(ctx context.Context, doc *model.ConstructionDocument, cfg ModelConfig) (*StageResult, error) {
	return f.runStep(ctx, model.StageFinalization, doc, cfg)
}

// RunChain executes the whole sub-chain, short-circuiting on the first
// failing step. The validate step's rejection halts the chain before
// finalize; its diagnostics travel back in the result.
func (f *Finalizer) RunChain(ctx context.Context, doc *model.ConstructionDocument, cfg ModelConfig) *ChainResult {
	result := &ChainResult{}

	if _, err := f.Assemble(ctx, doc, cfg); err != nil {
		result.FailedStep = model.StageAssembly
		result.Err = err
		return result
	}
	result.AssembledCode = doc.AssembledCode

	if _, err := f.Validate(ctx, doc, cfg); err != nil {
		result.FailedStep = model.StageValidation
		result.Err = err
		return result
	}
	result.ValidationResult = doc.ValidationResult

	if !doc.ValidationResult.IsValid {
		doc.SetStepState(model.StageValidation, model.StepFailed)
		result.FailedStep = model.StageValidation
		result.Err = &ValidationFailedError{Result: doc.ValidationResult}
		return result
	}

	if _, err := f.Finalize(ctx, doc, cfg); err != nil {
		result.FailedStep = model.StageFinalization
		result.Err = err
		return result
	}
	result.FinalProduct = doc.FinalProduct

	return result
}
