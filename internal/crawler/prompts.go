package crawler

import (
	"fmt"
	"strings"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/grounding"
)

// systemPrompt defines the persona and the response contract for the model.
const systemPrompt = `You are the decision engine of an autonomous mobile app explorer.
Each turn you receive the current screenshot, the numbered interactive elements
detected on it, and a journal of what was already tried.
You must respond ONLY with a JSON array of 1 to 3 action objects, executed in order.

Action objects:
- {"kind": "TAP", "label": <id>, "rationale": "..."}
- {"kind": "TAP", "box": {"x_min":..,"y_min":..,"x_max":..,"y_max":..}, "rationale": "..."}
- {"kind": "LONG_PRESS", "label": <id>, "rationale": "..."}
- {"kind": "INPUT", "label": <id>, "text": "<text to type>", "rationale": "..."}
- {"kind": "SWIPE", "direction": "up"|"down"|"left"|"right", "rationale": "..."}
- {"kind": "BACK", "rationale": "..."}
- {"kind": "CONCLUDE", "rationale": "objective reached or unreachable"}

Rules:
1. Reference elements by their label id whenever one fits; raw boxes are a fallback.
2. Prefer actions that progress the stated objective; avoid repeating journal entries.
3. Emit CONCLUDE alone, never alongside other actions.`

// buildUserPrompt assembles the per-cycle prompt: objective, journal
// window, and the labeled element inventory of the current screen.
func buildUserPrompt(objective string, journal *Journal, labels *grounding.LabelMap) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Objective: %s\n\n", objective)
	fmt.Fprintf(&b, "Journal of previous steps:\n%s\n\n", journal.Render())

	b.WriteString("Elements on the current screen:\n")
	if labels.Len() == 0 {
		b.WriteString("(none detected)\n")
	}
	for _, id := range labels.Labels() {
		r, _ := labels.Region(id)
		fmt.Fprintf(&b, "%d: %q at [%d,%d,%d,%d]\n", id, r.Text,
			r.Box.XMin, r.Box.YMin, r.Box.XMax, r.Box.YMax)
	}

	b.WriteString("\nDecide the next actions. Respond with a single JSON array.")
	return b.String()
}

// buildGenerationRequest wraps the prompts with the screenshot reference.
func buildGenerationRequest(objective, screenshotPath string, journal *Journal, labels *grounding.LabelMap) schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(objective, journal, labels),
		ImagePath:    screenshotPath,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	}
}
