package tool

import (
	"fmt"
	"strings"
)

// Format renders a readable list for logs and CLI output.
func Format(tools []Tool) string {
	if len(tools) == 0 {
		return "no tools available"
	}
	parts := make([]string, 0, len(tools))
	for _, t := range tools {
		parts = append(parts, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}
	return strings.Join(parts, "\n")
}

// ValidateInput checks the input against the tool's declared schema.
func ValidateInput(t Tool, input map[string]any) error {
	return t.Schema().Validate(input)
}
