package pipeline

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/toolforge/api/internal/model"
)

func fullyCommittedDocument(t *testing.T) *model.ConstructionDocument {
	t.Helper()
	doc := newTestDocument()
	stages := []struct {
		stage model.Stage
		raw   json.RawMessage
	}{
		{model.StageFunctionPlanning, rawFunctionPlan()},
		{model.StageStateDesign, rawStateDesign()},
		{model.StageLayout, rawLayout()},
		{model.StageStyling, rawStyling()},
		{model.StageAssembly, rawAssembly(testComponentCode)},
	}
	for _, s := range stages {
		frag, err := DecodeFragment(s.stage, s.raw)
		if err != nil {
			t.Fatalf("failed to decode %s fragment: %v", s.stage, err)
		}
		frag.Apply(doc)
	}
	result := ValidateComponent(doc.AssembledCode)
	doc.ValidationResult = &result
	return doc
}

func TestFilterDeterministic(t *testing.T) {
	doc := fullyCommittedDocument(t)
	for _, stage := range StageOrder {
		first, err := Filter(stage, doc)
		if err != nil {
			t.Fatalf("filter %s: %v", stage, err)
		}
		second, err := Filter(stage, doc)
		if err != nil {
			t.Fatalf("filter %s: %v", stage, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("stage %s: identical documents produced different views", stage)
		}
	}
}

func TestFilterMissingSections(t *testing.T) {
	cases := []struct {
		name    string
		stage   model.Stage
		mutate  func(doc *model.ConstructionDocument)
		missing string
	}{
		{
			name:    "function planning without brainstorm",
			stage:   model.StageFunctionPlanning,
			mutate:  func(doc *model.ConstructionDocument) { doc.BrainstormData = nil },
			missing: "brainstormData",
		},
		{
			name:    "state design without signatures",
			stage:   model.StageStateDesign,
			mutate:  func(doc *model.ConstructionDocument) { doc.FunctionSignatures = nil },
			missing: "definedFunctionSignatures",
		},
		{
			name:    "layout without state logic",
			stage:   model.StageLayout,
			mutate:  func(doc *model.ConstructionDocument) { doc.StateLogic = nil },
			missing: "stateLogic",
		},
		{
			name:    "styling without layout",
			stage:   model.StageStyling,
			mutate:  func(doc *model.ConstructionDocument) { doc.Layout = nil },
			missing: "jsxLayout",
		},
		{
			name:    "validation without assembled code",
			stage:   model.StageValidation,
			mutate:  func(doc *model.ConstructionDocument) { doc.AssembledCode = "" },
			missing: "assembledComponentCode",
		},
		{
			name:    "finalization without validation result",
			stage:   model.StageFinalization,
			mutate:  func(doc *model.ConstructionDocument) { doc.ValidationResult = nil },
			missing: "validationResult",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := fullyCommittedDocument(t)
			tc.mutate(doc)

			_, err := Filter(tc.stage, doc)
			var contextErr *IncompleteContextError
			if !errors.As(err, &contextErr) {
				t.Fatalf("expected IncompleteContextError, got %v", err)
			}
			found := false
			for _, m := range contextErr.Missing {
				if m == tc.missing {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %q among missing sections, got %v", tc.missing, contextErr.Missing)
			}
		})
	}
}

func TestFilterLayoutViewOmitsResearchProvenance(t *testing.T) {
	doc := fullyCommittedDocument(t)
	view, err := Filter(model.StageLayout, doc)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}

	serialized, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("failed to marshal view: %v", err)
	}
	if strings.Contains(string(serialized), doc.BrainstormData.ResearchNotes) {
		t.Error("research notes leaked into the layout view")
	}
}
