package pipeline

import (
	"encoding/json"

	"github.com/toolforge/api/internal/model"
)

// StageView is the minimal projection of the construction document one
// stage's prompt construction needs. The filter is pure: no side effects,
// deterministic for identical documents, and the view size is bounded by
// the sections a stage actually reads, so unrelated document growth never
// inflates an older stage's view.
type StageView struct {
	Stage     model.Stage
	UserInput model.UserInput

	// brainstorm projections
	CoreConcept      string
	ValueProposition string
	CalculationSpecs []model.CalculationSpec
	SuggestedInputs  []model.SuggestedInput
	InteractionFlow  []string
	LeadCapture      string

	// prior-stage fragments
	FunctionSignatures []model.FunctionSignature
	StateLogic         *model.StateLogicFragment
	Layout             *model.LayoutFragment
	Styling            *model.StylingFragment
	AssembledCode      string
	ValidationResult   *model.ValidationResult

	// revision mode (edit re-entry): the prior fragment for this stage and
	// the caller's free-text guidance. The adapter asks for a complete
	// replacement, not a diff.
	Revision      bool
	PriorFragment json.RawMessage
	Instructions  string
}

// Filter builds the stage view for one stage. If a required upstream
// section is absent it returns IncompleteContextError rather than a
// partial or defaulted view.
func Filter(stage model.Stage, doc *model.ConstructionDocument) (*StageView, error) {
	v := &StageView{Stage: stage, UserInput: doc.UserInput}
	var missing []string

	brainstorm := func() *model.BrainstormData {
		if doc.BrainstormData == nil || doc.BrainstormData.CoreConcept == "" {
			missing = append(missing, "brainstormData")
			return nil
		}
		return doc.BrainstormData
	}

	switch stage {
	case model.StageFunctionPlanning:
		if b := brainstorm(); b != nil {
			v.CoreConcept = b.CoreConcept
			v.ValueProposition = b.ValueProposition
			v.CalculationSpecs = b.CalculationSpecs
			v.SuggestedInputs = b.SuggestedInputs
		}

	case model.StageStateDesign:
		if b := brainstorm(); b != nil {
			v.CoreConcept = b.CoreConcept
			v.CalculationSpecs = b.CalculationSpecs
			v.SuggestedInputs = b.SuggestedInputs
		}
		if len(doc.FunctionSignatures) == 0 {
			missing = append(missing, "definedFunctionSignatures")
		}
		v.FunctionSignatures = doc.FunctionSignatures

	case model.StageLayout:
		// The layout stage sees derived input/calculation specs and the
		// interaction flow, never raw research provenance.
		if b := brainstorm(); b != nil {
			v.CoreConcept = b.CoreConcept
			v.SuggestedInputs = b.SuggestedInputs
			v.InteractionFlow = b.InteractionFlow
			v.LeadCapture = b.LeadCapture
		}
		if doc.StateLogic == nil {
			missing = append(missing, "stateLogic")
		}
		v.StateLogic = doc.StateLogic

	case model.StageStyling:
		if doc.Layout == nil {
			missing = append(missing, "jsxLayout")
		}
		v.Layout = doc.Layout

	case model.StageAssembly:
		if doc.StateLogic == nil {
			missing = append(missing, "stateLogic")
		}
		if doc.Layout == nil {
			missing = append(missing, "jsxLayout")
		}
		if doc.Styling == nil {
			missing = append(missing, "styling")
		}
		v.StateLogic = doc.StateLogic
		v.Layout = doc.Layout
		v.Styling = doc.Styling

	case model.StageValidation:
		if doc.AssembledCode == "" {
			missing = append(missing, "assembledComponentCode")
		}
		v.AssembledCode = doc.AssembledCode
		v.StateLogic = doc.StateLogic
		v.Layout = doc.Layout

	case model.StageFinalization:
		if doc.AssembledCode == "" {
			missing = append(missing, "assembledComponentCode")
		}
		if doc.ValidationResult == nil {
			missing = append(missing, "validationResult")
		}
		v.AssembledCode = doc.AssembledCode
		v.ValidationResult = doc.ValidationResult
		if b := doc.BrainstormData; b != nil {
			v.CoreConcept = b.CoreConcept
			v.ValueProposition = b.ValueProposition
		}

	default:
		return nil, &IncompleteContextError{Stage: stage, Missing: []string{"unknown stage"}}
	}

	if len(missing) > 0 {
		return nil, &IncompleteContextError{Stage: stage, Missing: missing}
	}
	return v, nil
}

// priorFragmentJSON extracts the committed fragment for a stage, used to
// seed revision-mode prompts.
func priorFragmentJSON(stage model.Stage, doc *model.ConstructionDocument) (json.RawMessage, error) {
	var section interface{}
	switch stage {
	case model.StageFunctionPlanning:
		section = map[string]interface{}{"signatures": doc.FunctionSignatures}
	case model.StageStateDesign:
		section = doc.StateLogic
	case model.StageLayout:
		section = doc.Layout
	case model.StageStyling:
		section = doc.Styling
	case model.StageAssembly:
		section = map[string]string{"componentCode": doc.AssembledCode}
	case model.StageValidation:
		section = doc.ValidationResult
	case model.StageFinalization:
		section = doc.FinalProduct
	}
	return json.Marshal(section)
}
