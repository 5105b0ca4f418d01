package engine

import (
	"context"
	"errors"
	"time"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/pkg/werrors"
)

// RetryPolicy configures the Invoker's linear back-off.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy matches the spec's default: 3 attempts, 1s base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

// Invoker is the PluginInvoker: it calls a plugin with a resolved input and
// classifies the outcome, retrying RetryableError with linear back-off.
type Invoker struct {
	Policy RetryPolicy
}

// NewInvoker builds an Invoker with the given retry policy.
func NewInvoker(policy RetryPolicy) *Invoker {
	return &Invoker{Policy: policy}
}

// Invoke calls p at most Policy.MaxRetries times in total, making a further
// attempt only after a RetryableError. scopeCtx is the step's own context frame; a fresh child is spawned
// for each attempt so a failed attempt's writes never leak into the next.
func (iv *Invoker) Invoke(ctx context.Context, p plugin.Plugin, stepName string, input plugin.Input, scopeCtx *Context) (plugin.Result, error) {
	maxRetries := iv.Policy.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	baseDelay := iv.Policy.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		attemptCtx := scopeCtx.SpawnChild(nil)
		result, err := p.Invoke(ctx, plugin.Call{StepName: stepName, Input: input, Context: attemptCtx})
		if err == nil {
			return result, nil
		}

		var retryable *werrors.RetryableError
		if !errors.As(err, &retryable) {
			return plugin.Result{}, err
		}
		lastErr = werrors.NewRetryableError(stepName, attempt, retryable.Err)

		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return plugin.Result{}, ctx.Err()
		case <-time.After(baseDelay * time.Duration(attempt)):
		}
	}
	return plugin.Result{}, lastErr
}
