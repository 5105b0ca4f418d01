package engine

import (
	"context"
	"testing"
	"time"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/pkg/werrors"
	"github.com/stretchr/testify/require"
)

type funcPlugin struct {
	meta plugin.PluginMetadata
	fn   func(call plugin.Call) (plugin.Result, error)
}

func (f funcPlugin) Metadata() plugin.PluginMetadata { return f.meta }

func (f funcPlugin) Invoke(_ context.Context, call plugin.Call) (plugin.Result, error) {
	return f.fn(call)
}

func TestInvokeReturnsResultOnSuccess(t *testing.T) {
	t.Parallel()

	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		return plugin.Result{Output: plugin.Output{"out": call.Input["msg"]}}, nil
	}}

	iv := NewInvoker(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})
	ctx := New("task-1", "", nil)
	result, err := iv.Invoke(context.Background(), p, "step", plugin.Input{"msg": "hi"}, ctx)
	require.NoError(t, err)
	require.Equal(t, "hi", result.Output["out"])
}

func TestInvokeDoesNotRetryInputError(t *testing.T) {
	t.Parallel()

	calls := 0
	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		calls++
		return plugin.Result{}, werrors.NewInputError("step", "msg", "missing", nil)
	}}

	iv := NewInvoker(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})
	ctx := New("task-1", "", nil)
	_, err := iv.Invoke(context.Background(), p, "step", plugin.Input{}, ctx)
	require.Error(t, err)
	require.Equal(t, 1, calls)

	var inputErr *werrors.InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestInvokeDoesNotRetryPluginError(t *testing.T) {
	t.Parallel()

	calls := 0
	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		calls++
		return plugin.Result{}, werrors.NewPluginError("step", "demo", "boom", nil)
	}}

	iv := NewInvoker(DefaultRetryPolicy())
	ctx := New("task-1", "", nil)
	_, err := iv.Invoke(context.Background(), p, "step", plugin.Input{}, ctx)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestInvokeRetriesRetryableErrorUpToLimit(t *testing.T) {
	t.Parallel()

	calls := 0
	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		calls++
		return plugin.Result{}, werrors.NewRetryableError("step", calls, nil)
	}}

	iv := NewInvoker(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})
	ctx := New("task-1", "", nil)
	_, err := iv.Invoke(context.Background(), p, "step", plugin.Input{}, ctx)
	require.Error(t, err)
	require.Equal(t, 3, calls)

	var retryable *werrors.RetryableError
	require.ErrorAs(t, err, &retryable)
	require.Equal(t, 3, retryable.Attempt)
}

func TestInvokeSucceedsAfterTransientRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		calls++
		if calls < 2 {
			return plugin.Result{}, werrors.NewRetryableError("step", calls, nil)
		}
		return plugin.Result{Output: plugin.Output{"ok": true}}, nil
	}}

	iv := NewInvoker(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})
	ctx := New("task-1", "", nil)
	result, err := iv.Invoke(context.Background(), p, "step", plugin.Input{}, ctx)
	require.NoError(t, err)
	require.Equal(t, true, result.Output["ok"])
	require.Equal(t, 2, calls)
}

func TestInvokeSpawnsFreshContextPerAttempt(t *testing.T) {
	t.Parallel()

	var seen []interface{}
	calls := 0
	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		calls++
		v, _ := call.Context.Get("scratch")
		seen = append(seen, v)
		if calls < 2 {
			return plugin.Result{}, werrors.NewRetryableError("step", calls, nil)
		}
		return plugin.Result{}, nil
	}}

	iv := NewInvoker(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})
	ctx := New("task-1", "", nil)
	_, err := iv.Invoke(context.Background(), p, "step", plugin.Input{}, ctx)
	require.NoError(t, err)
	require.Equal(t, []interface{}{nil, nil}, seen)
}

func TestInvokePropagatesSuspension(t *testing.T) {
	t.Parallel()

	p := funcPlugin{fn: func(call plugin.Call) (plugin.Result, error) {
		return plugin.Result{}, werrors.NewPluginSuspended("step", "waiting_on_user", nil)
	}}

	iv := NewInvoker(DefaultRetryPolicy())
	ctx := New("task-1", "", nil)
	_, err := iv.Invoke(context.Background(), p, "step", plugin.Input{}, ctx)
	require.Error(t, err)

	var suspended *werrors.PluginSuspendedError
	require.ErrorAs(t, err, &suspended)
	require.Equal(t, "waiting_on_user", suspended.Info.Reason)
}
