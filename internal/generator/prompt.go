package generator

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
)

// BuildPrompt renders the mentor prompt for a bucket and its current tasks.
func BuildPrompt(b horizon.Bucket, tasks []string) string {
	current := "no tasks yet"
	if len(tasks) > 0 {
		current = strings.Join(tasks, ", ")
	}

	var sb strings.Builder
	sb.WriteString("You are a visionary life mentor and philosopher.\n")
	fmt.Fprintf(&sb, "The user is reviewing their plans from the %q perspective.\n", b.Label())
	fmt.Fprintf(&sb, "Current tasks and goals: %s.\n\n", current)
	sb.WriteString("Offer a creative, poetic and imaginative insight.\n")
	fmt.Fprintf(&sb, "For this horizon, focus on %s.\n\n", b.Focus())
	sb.WriteString("Respond with a JSON object containing:\n")
	sb.WriteString("- prompt: a short creative writing prompt for the user.\n")
	sb.WriteString("- suggestion: an imaginative action or shift in perspective.\n")
	sb.WriteString("- vision: one highly poetic sentence about the beauty of this time horizon.\n")
	return sb.String()
}
