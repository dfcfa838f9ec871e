package orchestrate

import (
	"fmt"
	"strings"
)

// Gala renders a plan as a human-readable numbered summary: one line per
// step, pause markers on steps that wait for human input, an
// estimated-duration footer, and a trailing yes/no prompt. The returned
// text is what hosts show a user before asking them to confirm execution.
func Gala(plan *OrchestrationPlan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Plan for %q (confidence %.0f%%):\n",
		plan.Intent.Intent, plan.Intent.Confidence*100)

	if len(plan.Steps) == 0 {
		sb.WriteString("  (no steps)\n")
	}
	for i, step := range plan.Steps {
		if step.RequiresHumanInput {
			fmt.Fprintf(&sb, "  %d. ⏸ %s (%s) waits for you: %s\n",
				i+1, step.Action, step.AgentID, step.HumanInputPrompt)
			continue
		}
		fmt.Fprintf(&sb, "  %d. %s (%s)\n", i+1, step.Action, step.AgentID)
	}

	fmt.Fprintf(&sb, "Estimated duration: %s\n", plan.EstimatedDuration)
	sb.WriteString("Proceed? (yes/no)")
	return sb.String()
}
