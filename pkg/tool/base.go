package tool

import (
	"context"
	"fmt"
	"time"
)

// BaseTool implements the common fields of EnhancedTool.
// Embed this struct to get default implementations.
type BaseTool struct {
	SchemaVal      Schema
	TimeoutVal     time.Duration
	RetryPolicyVal *RetryPolicy
}

func NewBaseTool(schema Schema) BaseTool {
	return BaseTool{
		SchemaVal:  schema,
		TimeoutVal: 30 * time.Second,
	}
}

func (b *BaseTool) Name() string              { return b.SchemaVal.Name }
func (b *BaseTool) Description() string       { return b.SchemaVal.Description }
func (b *BaseTool) Schema() Schema            { return b.SchemaVal }
func (b *BaseTool) Timeout() time.Duration    { return b.TimeoutVal }
func (b *BaseTool) RetryPolicy() *RetryPolicy { return b.RetryPolicyVal }

// Execute must be implemented by the embedding struct.
func (b *BaseTool) Execute(ctx context.Context, input map[string]any, tc *ToolContext) (Output, error) {
	return Output{}, fmt.Errorf("tool %s has no implementation", b.Name())
}
