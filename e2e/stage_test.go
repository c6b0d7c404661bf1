package e2e

import (
	"encoding/json"
	"testing"

	"github.com/toolforge/api/internal/model"
)

// isolatedDocument builds a synthetic document for isolation-harness calls
func isolatedDocument() *model.ConstructionDocument {
	doc := model.NewConstructionDocument(
		model.UserInput{Description: "Tip calculator", ToolType: "calculator"},
		&model.BrainstormData{
			CoreConcept: "Compute the tip from the bill and a percentage",
			SuggestedInputs: []model.SuggestedInput{
				{Name: "billAmount", Type: "number", Label: "Bill amount"},
			},
		},
	)
	doc.FunctionSignatures = []model.FunctionSignature{
		{Name: "calculateTip", Returns: "number"},
	}
	return doc
}

func stageRunBody(t *testing.T, req model.StageRunRequest) string {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return string(data)
}

func TestIsolatedStageRun(t *testing.T) {
	ta := setupApp(t)

	body := stageRunBody(t, model.StageRunRequest{
		Isolated: true,
		Document: isolatedDocument(),
	})
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/stages/state-design/run", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 200)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Errorf("expected success, got %v", result)
	}
	if result["stage"] != "state-design" {
		t.Errorf("unexpected stage %v", result["stage"])
	}
	fragment, _ := result["updatedDocumentFragment"].(map[string]interface{})
	if fragment == nil || fragment["functions"] == nil {
		t.Errorf("expected a state-design fragment, got %v", result["updatedDocumentFragment"])
	}
	// Isolated runs never return sequenced job bookkeeping
	if result["stepStatus"] != nil {
		t.Error("isolated run returned stepStatus")
	}
}

func TestIsolatedStageRunRequiresDocument(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/stages/state-design/run", `{"isolated": true}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 400)

	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]interface{})
	if errObj == nil || errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", result)
	}
}

func TestIsolatedStageRunMissingUpstream(t *testing.T) {
	ta := setupApp(t)

	// layout needs stateLogic, which the document lacks
	body := stageRunBody(t, model.StageRunRequest{
		Isolated: true,
		Document: isolatedDocument(),
	})
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/stages/layout/run", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 400)

	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]interface{})
	if errObj == nil || errObj["code"] != "INCOMPLETE_CONTEXT" {
		t.Errorf("expected INCOMPLETE_CONTEXT, got %v", result)
	}
	details, _ := errObj["details"].(map[string]interface{})
	if details == nil || details["missing"] == nil {
		t.Errorf("expected the missing sections in details, got %v", errObj)
	}
}

func TestUnknownStage(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/stages/deployment/run", `{"isolated": true}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 400)
}

func TestSequencedStageRunRequiresJobID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/stages/function-planning/run", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 400)
}
