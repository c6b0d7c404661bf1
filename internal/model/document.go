package model

import (
	"encoding/json"
	"time"
)

// UserInput is the creation-time description of the tool to build.
// Immutable after job creation.
type UserInput struct {
	Description    string `json:"description" validate:"required"`
	ToolType       string `json:"toolType" validate:"required"`
	TargetAudience string `json:"targetAudience,omitempty"`
	Industry       string `json:"industry,omitempty"`
}

// BrainstormData is the upstream research/ideation payload. It is an
// immutable input to all stages; each stage sees only a filtered subset.
type BrainstormData struct {
	CoreConcept      string            `json:"coreConcept"`
	ValueProposition string            `json:"valueProposition,omitempty"`
	CalculationSpecs []CalculationSpec `json:"calculationSpecs,omitempty"`
	SuggestedInputs  []SuggestedInput  `json:"suggestedInputs,omitempty"`
	InteractionFlow  []string          `json:"interactionFlow,omitempty"`
	LeadCapture      string            `json:"leadCapture,omitempty"`
	// ResearchNotes is raw provenance from the research step. It is never
	// projected into a stage view.
	ResearchNotes string `json:"researchNotes,omitempty"`
}

// CalculationSpec describes one computation the generated tool performs
type CalculationSpec struct {
	Name        string `json:"name"`
	Formula     string `json:"formula"`
	Description string `json:"description,omitempty"`
}

// SuggestedInput describes one user-facing input of the generated tool
type SuggestedInput struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label,omitempty"`
	Options []string `json:"options,omitempty"`
}

// FunctionSignature is one planned operation (function-planning output)
type FunctionSignature struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  []ParamSpec `json:"parameters,omitempty"`
	Returns     string      `json:"returns,omitempty"`
}

type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// StateVariable is one typed variable of the generated tool's state
type StateVariable struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	InitialValue string `json:"initialValue,omitempty"`
	Description  string `json:"description,omitempty"`
}

// StateFunction implements one planned signature. The body is a flat list
// of statements; nested function declarations are rejected at schema
// validation. DependsOn names the state variables the body reads.
type StateFunction struct {
	Name       string   `json:"name"`
	Statements []string `json:"statements"`
	DependsOn  []string `json:"dependsOn,omitempty"`
}

// StateLogicFragment is the state-design stage output
type StateLogicFragment struct {
	Variables []StateVariable `json:"variables"`
	Functions []StateFunction `json:"functions"`
}

// LayoutFragment is the layout stage output: structural markup referencing
// state-logic identifiers.
type LayoutFragment struct {
	Markup          string   `json:"markup"`
	ElementIDs      []string `json:"elementIds,omitempty"`
	UsedIdentifiers []string `json:"usedIdentifiers,omitempty"`
}

// StyleRule applies declarations to one addressable layout element
type StyleRule struct {
	Selector     string `json:"selector"`
	Declarations string `json:"declarations"`
}

// StylingFragment is the styling stage output
type StylingFragment struct {
	Theme string      `json:"theme,omitempty"`
	Rules []StyleRule `json:"rules"`
}

// Diagnostic is one finding from static validation
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Where    string `json:"where,omitempty"`
}

// ValidationResult is the validation stage output
type ValidationResult struct {
	IsValid     bool         `json:"isValid"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// FinalProduct packages the validated artifact with descriptive metadata.
// ComponentCode is carried over byte-identical from the assembled unit.
type FinalProduct struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Slug          string    `json:"slug,omitempty"`
	ComponentCode string    `json:"componentCode"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ConstructionDocument (the TCC) is the single mutable aggregate owned by a
// job. All stages read filtered views of it; only the sequencer and the edit
// controller write into it.
type ConstructionDocument struct {
	UserInput          UserInput           `json:"userInput"`
	BrainstormData     *BrainstormData     `json:"brainstormData,omitempty"`
	FunctionSignatures []FunctionSignature `json:"definedFunctionSignatures,omitempty"`
	StateLogic         *StateLogicFragment `json:"stateLogic,omitempty"`
	Layout             *LayoutFragment     `json:"jsxLayout,omitempty"`
	Styling            *StylingFragment    `json:"styling,omitempty"`
	AssembledCode      string              `json:"assembledComponentCode,omitempty"`
	ValidationResult   *ValidationResult   `json:"validationResult,omitempty"`
	FinalProduct       *FinalProduct       `json:"finalProduct,omitempty"`

	// StepStatus is the sole source of truth for "is this document ready
	// for stage K".
	StepStatus map[Stage]StepState `json:"stepStatus"`

	// AgentModelMapping records which model configuration served each
	// stage, for reproducibility. Never omitempty: an empty map must
	// survive the store's JSON round-trip.
	AgentModelMapping map[Stage]string `json:"agentModelMapping"`
}

// NewConstructionDocument initializes a document with the immutable inputs
func NewConstructionDocument(input UserInput, brainstorm *BrainstormData) *ConstructionDocument {
	return &ConstructionDocument{
		UserInput:         input,
		BrainstormData:    brainstorm,
		StepStatus:        make(map[Stage]StepState),
		AgentModelMapping: make(map[Stage]string),
	}
}

// StepStateOf returns the recorded state for a stage, defaulting to not-started
func (d *ConstructionDocument) StepStateOf(s Stage) StepState {
	if st, ok := d.StepStatus[s]; ok {
		return st
	}
	return StepNotStarted
}

// SetStepState records a stage transition
func (d *ConstructionDocument) SetStepState(s Stage, st StepState) {
	if d.StepStatus == nil {
		d.StepStatus = make(map[Stage]StepState)
	}
	d.StepStatus[s] = st
}

// SetAgentModel records which model served a stage
func (d *ConstructionDocument) SetAgentModel(s Stage, m string) {
	if d.AgentModelMapping == nil {
		d.AgentModelMapping = make(map[Stage]string)
	}
	d.AgentModelMapping[s] = m
}

// Clone returns a deep copy of the document via a JSON round-trip
func (d *ConstructionDocument) Clone() *ConstructionDocument {
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out ConstructionDocument
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	if out.StepStatus == nil {
		out.StepStatus = make(map[Stage]StepState)
	}
	return &out
}
