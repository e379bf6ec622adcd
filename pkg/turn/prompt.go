package turn

import (
	"fmt"
	"strings"
)

// DefaultExitKeywords end the session when spoken.
var DefaultExitKeywords = []string{"goodbye"}

// BuildPrompt returns the text sent to the responder. Tool output, when
// present, is framed so the reply incorporates it.
func BuildPrompt(input string, toolResults *string) string {
	if toolResults == nil || *toolResults == "" {
		return input
	}
	return fmt.Sprintf("User query: %s\n\nTool results: %s\n\nPlease provide a natural response incorporating this information.",
		input, *toolResults)
}

// containsExit reports whether text contains any keyword, ignoring case.
func containsExit(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
