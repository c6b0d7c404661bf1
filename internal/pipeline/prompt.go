package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toolforge/api/internal/model"
)

// buildSystemPrompt returns the shared system instruction for a generative
// stage. Every stage demands JSON conforming to its declared schema.
func buildSystemPrompt(stage model.Stage) string {
	role := "senior front-end engineer"
	switch stage {
	case model.StageFunctionPlanning:
		role = "software architect planning the API surface of a small interactive tool"
	case model.StageStateDesign:
		role = "engineer implementing state management for a small interactive tool"
	case model.StageLayout:
		role = "UI engineer writing accessible structural markup"
	case model.StageStyling:
		role = "design engineer applying visual treatment to existing markup"
	case model.StageAssembly:
		role = "engineer merging state logic, markup and styles into one compilable component"
	case model.StageFinalization:
		role = "technical writer producing concise product metadata"
	}

	return fmt.Sprintf(`You are a %s.
Respond with valid JSON conforming exactly to the provided schema.
Do not include any text outside the JSON structure.`, role)
}

// buildUserPrompt renders the stage view into the stage instruction payload
func buildUserPrompt(v *StageView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tool type: %s\n", v.UserInput.ToolType)
	if g := toolTypeGuidance(model.ToolType(v.UserInput.ToolType)); g != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", g)
	}
	fmt.Fprintf(&b, "Description: %s\n", v.UserInput.Description)
	if v.UserInput.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", v.UserInput.TargetAudience)
	}
	if v.UserInput.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", v.UserInput.Industry)
	}
	if v.CoreConcept != "" {
		fmt.Fprintf(&b, "Core concept: %s\n", v.CoreConcept)
	}
	if v.ValueProposition != "" {
		fmt.Fprintf(&b, "Value proposition: %s\n", v.ValueProposition)
	}
	if len(v.CalculationSpecs) > 0 {
		b.WriteString("Calculations:\n")
		for _, c := range v.CalculationSpecs {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Formula)
		}
	}
	if len(v.SuggestedInputs) > 0 {
		b.WriteString("Suggested inputs:\n")
		for _, in := range v.SuggestedInputs {
			fmt.Fprintf(&b, "- %s (%s) %s\n", in.Name, in.Type, in.Label)
		}
	}
	if len(v.InteractionFlow) > 0 {
		fmt.Fprintf(&b, "Interaction flow: %s\n", strings.Join(v.InteractionFlow, " -> "))
	}
	if v.LeadCapture != "" {
		fmt.Fprintf(&b, "Lead capture: %s\n", v.LeadCapture)
	}

	if len(v.FunctionSignatures) > 0 {
		b.WriteString("\nPlanned function signatures:\n")
		b.WriteString(mustJSON(v.FunctionSignatures))
		b.WriteString("\n")
	}
	if v.StateLogic != nil {
		b.WriteString("\nState logic:\n")
		b.WriteString(mustJSON(v.StateLogic))
		b.WriteString("\n")
	}
	if v.Layout != nil {
		b.WriteString("\nLayout markup:\n")
		b.WriteString(v.Layout.Markup)
		b.WriteString("\n")
		if len(v.Layout.ElementIDs) > 0 {
			fmt.Fprintf(&b, "Addressable elements: %s\n", strings.Join(v.Layout.ElementIDs, ", "))
		}
	}
	if v.Styling != nil {
		b.WriteString("\nStyling:\n")
		b.WriteString(mustJSON(v.Styling))
		b.WriteString("\n")
	}
	if v.AssembledCode != "" {
		b.WriteString("\nAssembled component:\n")
		b.WriteString(v.AssembledCode)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(stageTask(v.Stage))

	if v.Revision {
		b.WriteString("\n\nThis is a revision. The previously generated output for this step was:\n")
		b.WriteString(string(v.PriorFragment))
		fmt.Fprintf(&b, "\n\nRevision instructions: %s\n", v.Instructions)
		b.WriteString("Produce a complete replacement, not a diff.")
	}

	return b.String()
}

// toolTypeGuidance returns the extra instruction for the tool types the
// prompts are tuned for. Free-form types get none.
func toolTypeGuidance(tt model.ToolType) string {
	switch tt {
	case model.ToolTypeCalculator:
		return "Favor numeric inputs with sensible defaults and recompute results immediately as inputs change."
	case model.ToolTypeComparison:
		return "Present the options side by side so differences are scannable at a glance."
	case model.ToolTypeAssessment:
		return "Score the answers against defined thresholds and present the resulting tier with a short explanation."
	case model.ToolTypeQuiz:
		return "Step through one question at a time and summarize the score at the end."
	}
	return ""
}

// stageTask returns the stage-specific task instruction
func stageTask(stage model.Stage) string {
	switch stage {
	case model.StageFunctionPlanning:
		return `Plan the named operations this tool needs. For each, give a name,
a one-line description, parameters with types, and the return description.
Cover every calculation listed above and nothing unrelated.`
	case model.StageStateDesign:
		return `Implement the planned signatures. Declare typed state variables and,
for each function, a flat list of statements. Never declare a function inside
a function body. For each function, list the state variables it reads in dependsOn.`
	case model.StageLayout:
		return `Write structural JSX markup for the tool. Reference state variables in
braces and wire handlers to the planned functions. Give each interactive element
an id and an aria-label. List the element ids and every state identifier used.`
	case model.StageStyling:
		return `Produce style rules for the layout's addressable elements. Use the
element ids as selectors. Pick a theme fitting the audience and industry.`
	case model.StageAssembly:
		return `Merge the state logic, markup and styles into one self-contained,
compilable React component exported as default. Declare every identifier the
markup references. Do not invent new behavior.`
	case model.StageFinalization:
		return `Write a short title, a one-paragraph description, and a URL slug for
this finished tool. Do not modify the component code.`
	}
	return ""
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
