package tool

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExecutorConfig controls how tools are executed.
type ExecutorConfig struct {
	MaxConcurrency int
	DefaultTimeout time.Duration
	Logger         *zap.Logger
}

// Executor runs tools with concurrency limits, timeouts, and retries.
type Executor struct {
	config    ExecutorConfig
	semaphore chan struct{}
	log       *zap.Logger
}

// NewExecutor builds an Executor with sane defaults.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrency),
		log:       log,
	}
}

// ExecuteRequest describes a single tool invocation.
type ExecuteRequest struct {
	Tool    Tool
	Input   map[string]any
	Context *ToolContext
	// Overrides tool's default timeout if set > 0
	TimeoutOverride time.Duration
}

// ExecuteResult captures the output of a tool invocation.
type ExecuteResult struct {
	Success    bool
	Output     Output
	Error      error
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   int
}

// Execute runs one tool with timeout and retry logic.
func (e *Executor) Execute(ctx context.Context, req *ExecuteRequest) *ExecuteResult {
	start := time.Now()
	fail := func(err error) *ExecuteResult {
		return &ExecuteResult{Success: false, Error: err, StartedAt: start, FinishedAt: time.Now()}
	}

	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	if err := ValidateInput(req.Tool, req.Input); err != nil {
		return fail(err)
	}

	tc := req.Context
	if tc == nil {
		tc = NewToolContext(WithLogger(e.log))
	}

	var (
		timeout     = e.config.DefaultTimeout
		retryPolicy *RetryPolicy
	)
	if et, ok := req.Tool.(EnhancedTool); ok {
		if t := et.Timeout(); t > 0 {
			timeout = t
		}
		retryPolicy = et.RetryPolicy()
	}
	if req.TimeoutOverride > 0 {
		timeout = req.TimeoutOverride
	}

	var (
		output   Output
		attempts int
	)
	execErr := retry.Do(ctx, backoffFor(retryPolicy), func(ctx context.Context) error {
		attempts++
		execCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var err error
		output, err = req.Tool.Execute(execCtx, req.Input, tc)
		if err == nil {
			return nil
		}
		if !isRetryable(err, retryPolicy) {
			return err
		}
		e.log.Debug("Tool execution failed, retrying",
			zap.String("tool", req.Tool.Name()),
			zap.String("execution_id", tc.ExecutionID),
			zap.Int("attempt", attempts),
			zap.Error(err))
		return retry.RetryableError(err)
	})

	end := time.Now()
	return &ExecuteResult{
		Success:    execErr == nil,
		Output:     output,
		Error:      execErr,
		StartedAt:  start,
		FinishedAt: end,
		Duration:   end.Sub(start),
		Attempts:   attempts,
	}
}

// ExecuteBatch runs a batch of requests concurrently. Results keep the order
// of the requests.
func (e *Executor) ExecuteBatch(ctx context.Context, requests []*ExecuteRequest) []*ExecuteResult {
	results := make([]*ExecuteResult, len(requests))

	var g errgroup.Group
	for i, req := range requests {
		g.Go(func() error {
			results[i] = e.Execute(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func backoffFor(policy *RetryPolicy) retry.Backoff {
	if policy == nil || policy.MaxRetries == 0 {
		return retry.WithMaxRetries(0, retry.NewConstant(time.Millisecond))
	}
	initial := policy.InitialBackoff
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	b := retry.NewExponential(initial)
	if policy.MaxBackoff > 0 {
		b = retry.WithCappedDuration(policy.MaxBackoff, b)
	}
	return retry.WithMaxRetries(policy.MaxRetries, b)
}

func isRetryable(err error, policy *RetryPolicy) bool {
	if policy == nil || policy.MaxRetries == 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return false
	}
	if len(policy.RetryableErrors) == 0 {
		return true
	}
	errStr := err.Error()
	for _, pattern := range policy.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
