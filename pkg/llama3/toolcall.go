package llama3

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"llamachat/pkg/parser"
)

// Arguments of a ToolCall: GenericArguments before the call is matched to a
// typed definition, TypedArguments after.
type Arguments interface {
	isArguments()
}

// GenericArguments are the decoded JSON parameters of a call.
type GenericArguments map[string]any

// TypedArguments hold the decoded value of a typed tool, or one of
// CodeInterpreter, BraveSearch and WolframAlpha.
type TypedArguments struct {
	Value any
}

func (GenericArguments) isArguments() {}
func (TypedArguments) isArguments()   {}

// ToolCall is a call of a tool as requested by the model.
type ToolCall struct {
	Name      string
	Arguments Arguments
}

// NewToolCall returns a call with generic arguments.
func NewToolCall(name string, args map[string]any) ToolCall {
	return ToolCall{Name: name, Arguments: GenericArguments(args)}
}

// NewBuiltInCall returns a typed call of a built-in tool.
func NewBuiltInCall[T CodeInterpreter | BraveSearch | WolframAlpha](args T) ToolCall {
	var call builtInCall = any(args).(builtInCall)
	return ToolCall{Name: call.builtIn().Name(), Arguments: TypedArguments{Value: args}}
}

// As returns the typed arguments of call as a T.
func As[T any](call ToolCall) (T, bool) {
	typed, ok := call.Arguments.(TypedArguments)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := typed.Value.(T)
	return v, ok
}

// jsonCall is the wire shape of a JSON tool call. "type" is informational.
type jsonCall struct {
	Type       string         `json:"type"`
	Name       *string        `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

var callParser = parser.NewJSONParser[jsonCall](
	parser.WithInstructions("Return function calls in JSON format."),
	parser.WithNumbers(),
)

// ParseToolCall extracts a tool call from a response. A missing call is a
// normal outcome and reported as false.
//
// JSON is tried first even behind the python tag: Llama 3.1 prefixes every
// call with the tag while 3.3 omits it for JSON calls. Built-in syntax is
// only considered behind the tag.
func ParseToolCall(resp Response) (ToolCall, bool) {
	if call, ok := jsonToolCall(resp.Text); ok {
		return call, true
	}
	if resp.PythonTag {
		return builtInToolCall(resp.Text), true
	}
	return ToolCall{}, false
}

func jsonToolCall(text string) (ToolCall, bool) {
	c, err := callParser.Parse(text)
	if err != nil || c.Name == nil || c.Parameters == nil {
		return ToolCall{}, false
	}
	return NewToolCall(*c.Name, c.Parameters), true
}

// builtInToolCall matches the built-in call syntax. Text that matches neither
// search tool is source for the code interpreter.
func builtInToolCall(text string) ToolCall {
	if q, ok := callQuery(text, BraveSearchTool); ok {
		return NewBuiltInCall(BraveSearch{Query: q})
	}
	if q, ok := callQuery(text, WolframAlphaTool); ok {
		return NewBuiltInCall(WolframAlpha{Query: q})
	}
	return NewBuiltInCall(CodeInterpreter{Src: strings.TrimSpace(text)})
}

// callQuery extracts X from `{tool}.call(query="X")`.
func callQuery(text string, t BuiltInTool) (string, bool) {
	rest, ok := strings.CutPrefix(text, t.Name()+`.call(query="`)
	if !ok {
		return "", false
	}
	query, _, ok := strings.Cut(rest, `")`)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(query), true
}

// ToolCallError reports a call whose arguments do not match the schema of
// the tool it names. Call holds the call with its generic arguments.
type ToolCallError struct {
	Call ToolCall
	Err  error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool call %s: %v", e.Call.Name, e.Err)
}

func (e *ToolCallError) Unwrap() error {
	return e.Err
}

// TryParse types the arguments of a generic call using the first definition
// with the same name. Unknown names leave the call generic. Arguments that do
// not fit the matched schema return a *ToolCallError and leave the call
// unchanged.
func (c *ToolCall) TryParse(defs []ToolDefinition) error {
	args, ok := c.Arguments.(GenericArguments)
	if !ok {
		return nil
	}

	for _, def := range defs {
		if def.Name() != c.Name {
			continue
		}

		var typed *TypedTool
		switch d := def.(type) {
		case *TypedTool:
			typed = d
		case BuiltInTool:
			typed = d.typed()
		}
		if typed == nil {
			return nil
		}

		v, err := typed.Decode(args)
		if err != nil {
			return &ToolCallError{Call: *c, Err: err}
		}
		c.Arguments = TypedArguments{Value: v}
		return nil
	}
	return nil
}

// Render reconstructs the model output for the call. Built-in calls use
// their call syntax behind the python tag, everything else renders as
// {"type": "function", "name": ..., "parameters": ...}.
func (c ToolCall) Render() string {
	if typed, ok := c.Arguments.(TypedArguments); ok {
		if b, ok := typed.Value.(builtInCall); ok {
			return PythonTag + b.renderCall()
		}
	}

	out, err := encodeJSON(struct {
		Type       string `json:"type"`
		Name       string `json:"name"`
		Parameters any    `json:"parameters"`
	}{"function", c.Name, c.Parameters()}, "")
	if err != nil {
		return ""
	}
	return spaceJSON(out)
}

// Parameters returns the arguments as a generic JSON object. Typed values are
// passed through their JSON encoding, so a typed call and the generic call it
// was decoded from yield the same parameters.
func (c ToolCall) Parameters() map[string]any {
	switch a := c.Arguments.(type) {
	case GenericArguments:
		if a == nil {
			return map[string]any{}
		}
		return a
	case TypedArguments:
		params, err := toGeneric(a.Value)
		if err != nil {
			return map[string]any{}
		}
		return params
	default:
		return map[string]any{}
	}
}

func toGeneric(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// decodeObject decodes a JSON object keeping numbers as json.Number.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	return out, nil
}
