package provider

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"llamachat/pkg/types"
)

// RetryConfig controls how a backend call is retried.
type RetryConfig struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Retryable decides whether an error is transient. Nil retries every error.
	Retryable func(error) bool
	Logger    *zap.Logger
}

type retryModel struct {
	next CompletionModel
	cfg  RetryConfig
}

// WithRetry wraps a backend so that failed completions are retried with
// exponential backoff. The last error is returned unchanged once the retries
// are exhausted.
func WithRetry(next CompletionModel, cfg RetryConfig) CompletionModel {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &retryModel{next: next, cfg: cfg}
}

func (m *retryModel) Name() string {
	return m.next.Name()
}

func (m *retryModel) Complete(ctx context.Context, model, prompt string, params types.CompletionParams) (*types.Completion, error) {
	backoff := retry.NewExponential(m.cfg.InitialBackoff)
	backoff = retry.WithCappedDuration(m.cfg.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(m.cfg.MaxRetries, backoff)

	var (
		out      *types.Completion
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		res, err := m.next.Complete(ctx, model, prompt, params)
		if err == nil {
			out = res
			return nil
		}
		if m.cfg.Retryable != nil && !m.cfg.Retryable(err) {
			return err
		}
		m.cfg.Logger.Debug("Completion failed, retrying",
			zap.String("provider", m.next.Name()),
			zap.Int("attempt", attempts),
			zap.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
