package werrors

import (
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInputErrorCarriesStepID(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("missing field")
	err := NewInputError("fetch_user", "user_id", "required field missing", underlying)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Equal(t, "fetch_user", inputErr.StepID())
	require.True(t, stdErrors.Is(err, underlying))
}

func TestRetryableErrorTracksAttempt(t *testing.T) {
	t.Parallel()

	err := NewRetryableError("call_api", 2, stdErrors.New("timeout"))

	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	require.Equal(t, 2, retryErr.Attempt)
	require.Contains(t, err.Error(), "attempt 2")
}

func TestPluginSuspendedCarriesInfo(t *testing.T) {
	t.Parallel()

	err := NewPluginSuspended("ask_user", "need name", map[string]interface{}{"prompt": "what is your name?"})

	var suspended *PluginSuspendedError
	require.ErrorAs(t, err, &suspended)
	require.Equal(t, "ask_user", suspended.StepID())
	require.Equal(t, "need name", suspended.Info.Reason)
	require.Equal(t, "what is your name?", suspended.Info.Data["prompt"])
}

func TestPipelineExecutionErrorAggregates(t *testing.T) {
	t.Parallel()

	err := &PipelineExecutionError{
		NormalErr:     NewDAGExecutionError("build", stdErrors.New("compile failed")),
		FinallyErrors: []error{NewPluginError("cleanup", "rm", "disk full", stdErrors.New("ENOSPC"))},
	}

	require.True(t, err.HasNormalError())
	require.True(t, err.HasFinallyErrors())
	require.Contains(t, err.Error(), "build")
	require.Contains(t, err.Error(), "cleanup")
}

func TestDAGExecutionErrorUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("exit status 1")
	err := NewDAGExecutionError("install", underlying)
	require.True(t, stdErrors.Is(err, underlying))
}
