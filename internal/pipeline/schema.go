package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/toolforge/api/internal/model"
)

// Fragment is the typed partial update to the document produced by one
// stage invocation. Only the sequencer and the edit controller apply
// fragments; adapters and harness callers receive them unapplied.
type Fragment interface {
	Stage() model.Stage
	Apply(doc *model.ConstructionDocument)
}

type FunctionPlanFragment struct {
	Signatures []model.FunctionSignature `json:"signatures"`
}

func (f *FunctionPlanFragment) Stage() model.Stage { return model.StageFunctionPlanning }
func (f *FunctionPlanFragment) Apply(doc *model.ConstructionDocument) {
	doc.FunctionSignatures = f.Signatures
}

type StateDesignFragment struct {
	model.StateLogicFragment
}

func (f *StateDesignFragment) Stage() model.Stage { return model.StageStateDesign }
func (f *StateDesignFragment) Apply(doc *model.ConstructionDocument) {
	logic := f.StateLogicFragment
	doc.StateLogic = &logic
}

type LayoutStageFragment struct {
	model.LayoutFragment
}

func (f *LayoutStageFragment) Stage() model.Stage { return model.StageLayout }
func (f *LayoutStageFragment) Apply(doc *model.ConstructionDocument) {
	layout := f.LayoutFragment
	doc.Layout = &layout
}

type StylingStageFragment struct {
	model.StylingFragment
}

func (f *StylingStageFragment) Stage() model.Stage { return model.StageStyling }
func (f *StylingStageFragment) Apply(doc *model.ConstructionDocument) {
	styling := f.StylingFragment
	doc.Styling = &styling
}

type AssemblyFragment struct {
	ComponentCode string `json:"componentCode"`
}

func (f *AssemblyFragment) Stage() model.Stage { return model.StageAssembly }
func (f *AssemblyFragment) Apply(doc *model.ConstructionDocument) {
	doc.AssembledCode = f.ComponentCode
}

type ValidationFragment struct {
	model.ValidationResult
}

func (f *ValidationFragment) Stage() model.Stage { return model.StageValidation }
func (f *ValidationFragment) Apply(doc *model.ConstructionDocument) {
	result := f.ValidationResult
	doc.ValidationResult = &result
}

// FinalizeFragment carries metadata only. Apply copies the assembled code
// into the final product verbatim; finalization never rewrites the artifact.
type FinalizeFragment struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug,omitempty"`
}

func (f *FinalizeFragment) Stage() model.Stage { return model.StageFinalization }
func (f *FinalizeFragment) Apply(doc *model.ConstructionDocument) {
	doc.FinalProduct = &model.FinalProduct{
		ID:            uuid.New().String(),
		Title:         f.Title,
		Description:   f.Description,
		Slug:          f.Slug,
		ComponentCode: doc.AssembledCode,
		CreatedAt:     time.Now(),
	}
}

// nestedFunctionDecl matches a function declaration inside a statement body
var nestedFunctionDecl = regexp.MustCompile(`\bfunction\s+[A-Za-z_$][A-Za-z0-9_$]*\s*\(`)

// DecodeFragment parses and structurally validates a stage's generation
// output. Any failure is a non-retryable SchemaViolationError carrying the
// offending payload.
func DecodeFragment(stage model.Stage, raw json.RawMessage) (Fragment, error) {
	violation := func(reason string) error {
		return &SchemaViolationError{Stage: stage, Reason: reason, Payload: raw}
	}
	decode := func(dst interface{}) error {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return violation(fmt.Sprintf("malformed payload: %v", err))
		}
		return nil
	}

	switch stage {
	case model.StageFunctionPlanning:
		var f FunctionPlanFragment
		if err := decode(&f); err != nil {
			return nil, err
		}
		if len(f.Signatures) == 0 {
			return nil, violation("no function signatures declared")
		}
		seen := make(map[string]bool, len(f.Signatures))
		for _, sig := range f.Signatures {
			if sig.Name == "" {
				return nil, violation("function signature with empty name")
			}
			if seen[sig.Name] {
				return nil, violation(fmt.Sprintf("duplicate function signature %q", sig.Name))
			}
			seen[sig.Name] = true
		}
		return &f, nil

	case model.StageStateDesign:
		var f StateDesignFragment
		if err := decode(&f.StateLogicFragment); err != nil {
			return nil, err
		}
		if len(f.Functions) == 0 {
			return nil, violation("no functions implemented")
		}
		vars := make(map[string]bool, len(f.Variables))
		for _, v := range f.Variables {
			if v.Name == "" || v.Type == "" {
				return nil, violation("state variable missing name or type")
			}
			vars[v.Name] = true
		}
		for _, fn := range f.Functions {
			if fn.Name == "" {
				return nil, violation("function with empty name")
			}
			if len(fn.Statements) == 0 {
				return nil, violation(fmt.Sprintf("function %q has an empty body", fn.Name))
			}
			for _, stmt := range fn.Statements {
				if nestedFunctionDecl.MatchString(stmt) {
					return nil, violation(fmt.Sprintf("function %q contains a nested function declaration; bodies must be flat statement lists", fn.Name))
				}
			}
			for _, dep := range fn.DependsOn {
				if !vars[dep] {
					return nil, violation(fmt.Sprintf("function %q depends on undeclared variable %q", fn.Name, dep))
				}
			}
		}
		return &f, nil

	case model.StageLayout:
		var f LayoutStageFragment
		if err := decode(&f.LayoutFragment); err != nil {
			return nil, err
		}
		if f.Markup == "" {
			return nil, violation("empty markup")
		}
		return &f, nil

	case model.StageStyling:
		var f StylingStageFragment
		if err := decode(&f.StylingFragment); err != nil {
			return nil, err
		}
		if len(f.Rules) == 0 {
			return nil, violation("no style rules")
		}
		for _, r := range f.Rules {
			if r.Selector == "" || r.Declarations == "" {
				return nil, violation("style rule missing selector or declarations")
			}
		}
		return &f, nil

	case model.StageAssembly:
		var f AssemblyFragment
		if err := decode(&f); err != nil {
			return nil, err
		}
		if f.ComponentCode == "" {
			return nil, violation("empty component code")
		}
		return &f, nil

	case model.StageValidation:
		var f ValidationFragment
		if err := decode(&f.ValidationResult); err != nil {
			return nil, err
		}
		return &f, nil

	case model.StageFinalization:
		var f FinalizeFragment
		if err := decode(&f); err != nil {
			return nil, err
		}
		if f.Title == "" {
			return nil, violation("empty product title")
		}
		return &f, nil
	}

	return nil, violation("unknown stage")
}

// StageSchema returns the JSON schema the provider is asked to conform to
// for a generative stage.
func StageSchema(stage model.Stage) json.RawMessage {
	return stageSchemas[stage]
}

var stageSchemas = map[model.Stage]json.RawMessage{
	model.StageFunctionPlanning: json.RawMessage(`{
		"type": "object",
		"properties": {
			"signatures": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"name": {"type": "string"},
						"description": {"type": "string"},
						"parameters": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"name": {"type": "string"},
									"type": {"type": "string"},
									"description": {"type": "string"}
								},
								"required": ["name", "type"]
							}
						},
						"returns": {"type": "string"}
					},
					"required": ["name"]
				}
			}
		},
		"required": ["signatures"]
	}`),
	model.StageStateDesign: json.RawMessage(`{
		"type": "object",
		"properties": {
			"variables": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"name": {"type": "string"},
						"type": {"type": "string"},
						"initialValue": {"type": "string"},
						"description": {"type": "string"}
					},
					"required": ["name", "type"]
				}
			},
			"functions": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"name": {"type": "string"},
						"statements": {"type": "array", "minItems": 1, "items": {"type": "string"}},
						"dependsOn": {"type": "array", "items": {"type": "string"}}
					},
					"required": ["name", "statements"]
				}
			}
		},
		"required": ["variables", "functions"]
	}`),
	model.StageLayout: json.RawMessage(`{
		"type": "object",
		"properties": {
			"markup": {"type": "string"},
			"elementIds": {"type": "array", "items": {"type": "string"}},
			"usedIdentifiers": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["markup"]
	}`),
	model.StageStyling: json.RawMessage(`{
		"type": "object",
		"properties": {
			"theme": {"type": "string"},
			"rules": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"selector": {"type": "string"},
						"declarations": {"type": "string"}
					},
					"required": ["selector", "declarations"]
				}
			}
		},
		"required": ["rules"]
	}`),
	model.StageAssembly: json.RawMessage(`{
		"type": "object",
		"properties": {
			"componentCode": {"type": "string"}
		},
		"required": ["componentCode"]
	}`),
	model.StageFinalization: json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"description": {"type": "string"},
			"slug": {"type": "string"}
		},
		"required": ["title"]
	}`),
}
