package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Callable adapts plain functions into Tool implementations.
type Callable func(ctx context.Context, input map[string]any, tc *ToolContext) (Output, error)

// Func is a lightweight Tool implementation that supports EnhancedTool features.
type Func struct {
	BaseTool
	fn Callable
}

// NewFunc creates a new Tool from a function.
func NewFunc(schema Schema, fn Callable) *Func {
	return &Func{
		BaseTool: NewBaseTool(schema),
		fn:       fn,
	}
}

// Execute runs the wrapped function.
func (f *Func) Execute(ctx context.Context, input map[string]any, tc *ToolContext) (Output, error) {
	if f.fn == nil {
		return Output{}, fmt.Errorf("tool %s has no implementation", f.Name())
	}
	return f.fn(ctx, input, tc)
}

// Fluent setters for configuration

func (f *Func) WithTimeout(d time.Duration) *Func {
	f.TimeoutVal = d
	return f
}

func (f *Func) WithRetry(policy *RetryPolicy) *Func {
	f.RetryPolicyVal = policy
	return f
}

// Struct is a tool that decodes its validated input into T.
type Struct[T any] struct {
	BaseTool
	fn func(context.Context, T, *ToolContext) (Output, error)
}

// NewStruct creates a tool from a struct type. The schema is declared
// explicitly and must describe the json tags of T.
func NewStruct[T any](schema Schema, fn func(context.Context, T, *ToolContext) (Output, error)) *Struct[T] {
	return &Struct[T]{
		BaseTool: NewBaseTool(schema),
		fn:       fn,
	}
}

func (s *Struct[T]) Execute(ctx context.Context, input map[string]any, tc *ToolContext) (Output, error) {
	args, err := Decode[T](s.SchemaVal, input)
	if err != nil {
		return Output{}, err
	}
	return s.fn(ctx, args, tc)
}

// Fluent setters for Struct

func (s *Struct[T]) WithTimeout(d time.Duration) *Struct[T] {
	s.TimeoutVal = d
	return s
}

func (s *Struct[T]) WithRetry(policy *RetryPolicy) *Struct[T] {
	s.RetryPolicyVal = policy
	return s
}

// Decode validates input against schema and decodes it into T.
func Decode[T any](schema Schema, input map[string]any) (T, error) {
	var args T
	if err := schema.Validate(input); err != nil {
		return args, err
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return args, fmt.Errorf("failed to marshal input for tool %s: %w", schema.Name, err)
	}
	// Numbers landing in interface values stay json.Number.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return args, &ValidationError{Tool: schema.Name, Err: err}
	}
	return args, nil
}
