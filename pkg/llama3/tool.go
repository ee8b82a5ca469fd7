package llama3

import (
	"bytes"
	"encoding/json"
	"strings"

	"llamachat/pkg/tool"
)

// ToolDefinition declares a tool the model may call. Implementations are
// *TypedTool, JSONSchema and BuiltInTool.
type ToolDefinition interface {
	// Name is the canonical name the model uses in its calls.
	Name() string

	isToolDefinition()
}

// TypedTool is a tool with a statically declared schema whose arguments
// decode into a Go value.
type TypedTool struct {
	schema tool.Schema
	decode func(map[string]any) (any, error)
}

// DefineTool declares a typed tool. The schema must describe the json
// encoding of T; call arguments are validated against it and decoded into T.
func DefineTool[T any](schema tool.Schema) *TypedTool {
	return &TypedTool{
		schema: schema,
		decode: func(args map[string]any) (any, error) {
			return tool.Decode[T](schema, args)
		},
	}
}

func (t *TypedTool) Name() string        { return t.schema.Name }
func (t *TypedTool) Schema() tool.Schema { return t.schema }

// Decode validates args against the schema and returns a T.
func (t *TypedTool) Decode(args map[string]any) (any, error) {
	return t.decode(args)
}

// JSONSchema returns the wire definition of the tool.
func (t *TypedTool) JSONSchema() JSONSchema {
	return NewJSONSchema(t.schema.Name, t.schema.Description, t.schema.Parameters())
}

// JSONSchema is a pre-built tool definition in the
// {"type": "function", "function": {...}} shape.
type JSONSchema struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

func NewJSONSchema(name, description string, parameters map[string]any) JSONSchema {
	return JSONSchema{
		Type: "function",
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

func (s JSONSchema) Name() string { return s.Function.Name }

// BuiltInTool is one of the tools Llama 3 was trained to call with its own
// syntax.
type BuiltInTool string

const (
	CodeInterpreterTool BuiltInTool = "code_interpreter"
	BraveSearchTool     BuiltInTool = "brave_search"
	WolframAlphaTool    BuiltInTool = "wolfram_alpha"
)

// ParseBuiltInTool reports whether name is a built-in tool.
func ParseBuiltInTool(name string) (BuiltInTool, bool) {
	switch b := BuiltInTool(name); b {
	case CodeInterpreterTool, BraveSearchTool, WolframAlphaTool:
		return b, true
	}
	return "", false
}

func (b BuiltInTool) Name() string { return string(b) }

// typed returns the definition used to decode JSON arguments of the tool.
func (b BuiltInTool) typed() *TypedTool {
	switch b {
	case CodeInterpreterTool:
		return codeInterpreterDef
	case BraveSearchTool:
		return braveSearchDef
	case WolframAlphaTool:
		return wolframAlphaDef
	}
	return nil
}

// IsBuiltIn reports whether def is one of the built-in tools.
func IsBuiltIn(def ToolDefinition) bool {
	b, ok := def.(BuiltInTool)
	if !ok {
		return false
	}
	_, ok = ParseBuiltInTool(string(b))
	return ok
}

func (*TypedTool) isToolDefinition()  {}
func (JSONSchema) isToolDefinition()  {}
func (BuiltInTool) isToolDefinition() {}

// Arguments of the built-in tools.

type CodeInterpreter struct {
	Src string `json:"src"`
}

type BraveSearch struct {
	Query string `json:"query"`
}

type WolframAlpha struct {
	Query string `json:"query"`
}

var (
	codeInterpreterDef = DefineTool[CodeInterpreter](tool.NewSchema("CodeInterpreter", "",
		tool.Field{Name: "src", Type: tool.TypeString, Required: true}))
	braveSearchDef = DefineTool[BraveSearch](tool.NewSchema("BraveSearch", "",
		tool.Field{Name: "query", Type: tool.TypeString, Required: true}))
	wolframAlphaDef = DefineTool[WolframAlpha](tool.NewSchema("WolframAlpha", "",
		tool.Field{Name: "query", Type: tool.TypeString, Required: true}))
)

// builtInCall is implemented by the argument types of built-in tools, which
// render in their own call syntax instead of JSON.
type builtInCall interface {
	builtIn() BuiltInTool
	renderCall() string
}

func (CodeInterpreter) builtIn() BuiltInTool { return CodeInterpreterTool }
func (BraveSearch) builtIn() BuiltInTool     { return BraveSearchTool }
func (WolframAlpha) builtIn() BuiltInTool    { return WolframAlphaTool }

func (c CodeInterpreter) renderCall() string { return c.Src }
func (s BraveSearch) renderCall() string     { return `brave_search.call(query="` + s.Query + `")` }
func (w WolframAlpha) renderCall() string    { return `wolfram_alpha.call(query="` + w.Query + `")` }

// RenderDefinition renders def the way it is shown to the model. Built-in
// tools render as their name, all others as 4-space indented JSON.
func RenderDefinition(def ToolDefinition) string {
	switch d := def.(type) {
	case BuiltInTool:
		return string(d)
	case *TypedTool:
		return renderTyped(d)
	case JSONSchema:
		return renderSchema(d)
	default:
		return def.Name()
	}
}

// renderTyped always emits the description key, null when the schema has
// none, matching what the definition block looks like in training data.
func renderTyped(t *TypedTool) string {
	s := t.JSONSchema()
	var description *string
	if s.Function.Description != "" {
		description = &s.Function.Description
	}

	type function struct {
		Name        string         `json:"name"`
		Description *string        `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	}
	out, err := encodeJSON(struct {
		Type     string   `json:"type"`
		Function function `json:"function"`
	}{s.Type, function{s.Function.Name, description, s.Function.Parameters}}, "    ")
	if err != nil {
		return s.Function.Name
	}
	return out
}

// renderSchema renders a caller supplied definition as given.
func renderSchema(s JSONSchema) string {
	if s.Type == "" {
		s.Type = "function"
	}
	if s.Function.Parameters == nil {
		s.Function.Parameters = map[string]any{}
	}
	out, err := encodeJSON(s, "    ")
	if err != nil {
		return s.Function.Name
	}
	return out
}

// encodeJSON marshals v without HTML escaping, which would otherwise mangle
// <, > and & inside prompts.
func encodeJSON(v any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// spaceJSON puts a space after every separator of compact JSON, outside of
// strings: `{"a":1,"b":2}` becomes `{"a": 1, "b": 2}`. This is the layout
// models are trained on for tool calls.
func spaceJSON(compact string) string {
	var sb strings.Builder
	sb.Grow(len(compact) + len(compact)/4)

	inString, escaped := false, false
	for i := 0; i < len(compact); i++ {
		c := compact[i]
		sb.WriteByte(c)
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == ',' || c == ':'):
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
