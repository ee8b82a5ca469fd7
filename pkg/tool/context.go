package tool

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ToolContext carries metadata and services for tool execution.
type ToolContext struct {
	// Identity info
	SessionID   string
	ExecutionID string // Unique ID for this execution

	// Context
	Context context.Context

	// Metadata for arbitrary values
	Metadata map[string]any

	Logger *zap.Logger
}

// Option defines a function to configure ToolContext
type Option func(*ToolContext)

func NewToolContext(opts ...Option) *ToolContext {
	tc := &ToolContext{
		ExecutionID: uuid.NewString(),
		Metadata:    make(map[string]any),
		Context:     context.Background(),
		Logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

func WithSessionID(id string) Option {
	return func(tc *ToolContext) {
		tc.SessionID = id
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(tc *ToolContext) {
		if l != nil {
			tc.Logger = l
		}
	}
}

func WithMetadata(key string, value any) Option {
	return func(tc *ToolContext) {
		tc.Metadata[key] = value
	}
}
