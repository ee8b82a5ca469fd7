package tool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSON Schema primitive types accepted for a Field.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Field declares one parameter of a tool.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	// Default is rendered into the schema when non-nil.
	Default any
	// Items describes the element type of an array field. Its Name is ignored.
	Items *Field
}

// Schema is the statically declared descriptor of a tool: its canonical name,
// a description shown to the model and the parameter list.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

// NewSchema declares a schema for a tool whose canonical name is derived from
// a Go style type name, e.g. "GetGithubReadme" becomes "get_github_readme".
func NewSchema(typeName, description string, fields ...Field) Schema {
	return Schema{
		Name:        SnakeCase(typeName),
		Description: description,
		Fields:      fields,
	}
}

// SnakeCase inserts an underscore before every upper case letter that is not
// the first character and lower-cases the result.
func SnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Parameters renders the JSON schema of the parameters object.
// Maps are used so that encoding/json emits keys in a stable, sorted order.
func (s Schema) Parameters() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		properties[f.Name] = f.property()
		if f.Required {
			required = append(required, f.Name)
		}
	}

	params := map[string]any{
		"type":       TypeObject,
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return params
}

func (f Field) property() map[string]any {
	prop := map[string]any{"type": f.Type}
	if f.Description != "" {
		prop["description"] = f.Description
	}
	if f.Default != nil {
		prop["default"] = f.Default
	}
	if f.Type == TypeArray && f.Items != nil {
		prop["items"] = f.Items.property()
	}
	return prop
}

func (s Schema) jsonSchema() *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		properties[f.Name] = f.jsonSchema()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func (f Field) jsonSchema() *jsonschema.Schema {
	js := &jsonschema.Schema{Type: f.Type, Description: f.Description}
	if f.Type == TypeArray && f.Items != nil {
		js.Items = f.Items.jsonSchema()
	}
	return js
}

// Validate checks generic JSON arguments against the schema.
func (s Schema) Validate(args map[string]any) error {
	resolved, err := s.jsonSchema().Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", s.Name, err)
	}

	// A nil map would validate as JSON null rather than an empty object.
	instance := map[string]any{}
	if args != nil {
		instance = numbers(args).(map[string]any)
	}
	if err := resolved.Validate(instance); err != nil {
		return &ValidationError{Tool: s.Name, Err: err}
	}
	return nil
}

// numbers converts json.Number values, which the validator would type as
// strings, into int64, uint64 or float64.
func numbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = numbers(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = numbers(e)
		}
		return out
	default:
		return v
	}
}

// ValidationError reports arguments that do not match a tool's schema.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
