package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Template is a lightweight string template using double-brace placeholders.
// Example: "Hello {{name}}" with vars map{"name": "Agent"} -> "Hello Agent".
type Template struct {
	Text string
}

// NewTemplate returns a Template with the provided text.
func NewTemplate(text string) Template {
	return Template{Text: text}
}

// Render replaces all placeholders with values in a single pass, so values
// that themselves contain placeholders are left as they are. Missing keys are
// left untouched.
func (t Template) Render(vars map[string]any) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", fmt.Sprint(vars[k]))
	}
	return strings.NewReplacer(pairs...).Replace(t.Text)
}
