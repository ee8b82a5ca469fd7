package tool

import (
	"context"
	"strings"
	"time"
)

// Tool represents an executable capability the model can call.
type Tool interface {
	// Name returns the canonical name the model uses in tool calls.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Schema returns the declared parameter schema.
	Schema() Schema

	// Execute runs the tool logic.
	Execute(ctx context.Context, input map[string]any, tc *ToolContext) (Output, error)
}

// EnhancedTool extends Tool with execution policies.
type EnhancedTool interface {
	Tool

	// Timeout returns the execution timeout. Return 0 for default.
	Timeout() time.Duration

	// RetryPolicy returns the retry configuration. Return nil for no retries.
	RetryPolicy() *RetryPolicy
}

// Output is the result of a tool invocation. Most tools return a single text.
type Output struct {
	Contents []string
}

// Text joins all contents into one string.
func (o Output) Text() string {
	return strings.Join(o.Contents, "\n\n")
}

// TextOutput wraps a single string.
func TextOutput(s string) Output {
	return Output{Contents: []string{s}}
}

// RetryPolicy defines how tool execution should be retried on failure.
type RetryPolicy struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Substrings of retryable error messages. Empty retries every error.
	RetryableErrors []string
}

// DefaultRetryPolicy returns a standard retry configuration.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}
