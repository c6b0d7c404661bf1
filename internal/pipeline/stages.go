package pipeline

import (
	"fmt"

	"github.com/toolforge/api/internal/model"
)

// StageOrder is the canonical dependency order. Later stages' context
// filters depend on earlier stages' committed fragments, so execution is
// strictly sequential per document.
var StageOrder = []model.Stage{
	model.StageFunctionPlanning,
	model.StageStateDesign,
	model.StageLayout,
	model.StageStyling,
	model.StageAssembly,
	model.StageValidation,
	model.StageFinalization,
}

// stageDeps maps each stage to the stages whose fragments must be committed
// before it may execute through the sequencer.
var stageDeps = map[model.Stage][]model.Stage{
	model.StageFunctionPlanning: nil,
	model.StageStateDesign:      {model.StageFunctionPlanning},
	model.StageLayout:           {model.StageStateDesign},
	model.StageStyling:          {model.StageLayout},
	model.StageAssembly:         {model.StageStateDesign, model.StageLayout, model.StageStyling},
	model.StageValidation:       {model.StageAssembly},
	model.StageFinalization:     {model.StageValidation},
}

// FinalizationChain is the fixed 3-step tail shared by normal and
// standalone runs.
var FinalizationChain = []model.Stage{
	model.StageAssembly,
	model.StageValidation,
	model.StageFinalization,
}

// ParseStage validates a stage name from an external caller
func ParseStage(name string) (model.Stage, error) {
	s := model.Stage(name)
	if _, ok := stageDeps[s]; !ok {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}

// DependenciesOf returns the stages that must be done before s
func DependenciesOf(s model.Stage) []model.Stage {
	return stageDeps[s]
}

// Downstream returns the stages strictly after s in canonical order
func Downstream(s model.Stage) []model.Stage {
	for i, st := range StageOrder {
		if st == s {
			return StageOrder[i+1:]
		}
	}
	return nil
}

// depsSatisfied reports whether every dependency of s is done on doc
func depsSatisfied(s model.Stage, doc *model.ConstructionDocument) bool {
	for _, dep := range stageDeps[s] {
		if doc.StepStateOf(dep) != model.StepDone {
			return false
		}
	}
	return true
}
