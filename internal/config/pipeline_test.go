package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/internal/workflow"
)

const samplePipeline = `
id: deploy
name: deploy-service
params:
  - name: environment
    type: string
    required: true
steps:
  - name: build
    plugin: command
    config:
      cmd: make build
  - name: test
    plugin: command
    depends_on:
      - build
    config:
      cmd: make test
  - name: notify
    plugin: command
    depends_on:
      - step: test
        when_output_equals: "ok"
    fail_on_error: false
  - name: cleanup
    plugin: command
    finally: true
`

func TestParsePipelineDecodesBareAndConditionalDependencies(t *testing.T) {
	t.Parallel()
	def, err := ParsePipeline([]byte(samplePipeline))
	require.NoError(t, err)
	require.Equal(t, "deploy", def.ID)

	steps := def.StepByName()
	require.Equal(t, []workflow.Dependency{{Step: "build"}}, steps["test"].DependsOn)

	notify := steps["notify"]
	require.False(t, notify.FailOnError)
	require.Len(t, notify.DependsOn, 1)
	require.True(t, notify.DependsOn[0].IsConditional())
	require.Equal(t, "ok", *notify.DependsOn[0].Predicate)

	require.True(t, steps["cleanup"].IsFinally)
	require.True(t, steps["build"].FailOnError, "fail_on_error defaults true when absent")
}

func TestParsePipelineRejectsMissingRequiredField(t *testing.T) {
	t.Parallel()
	_, err := ParsePipeline([]byte("name: no-id\nsteps:\n  - name: a\n    plugin: command\n"))
	require.NoError(t, err) // id is not struct-tag required; ValidateShape only checks name/steps

	_, err = ParsePipeline([]byte("id: x\nsteps: []\n"))
	require.Error(t, err)
}

func TestParsePipelineRejectsBadParamType(t *testing.T) {
	t.Parallel()
	_, err := ParsePipeline([]byte(`
id: x
name: x
params:
  - name: p
    type: not-a-type
steps:
  - name: a
    plugin: command
`))
	require.Error(t, err)
}

func TestParsePipelineDecodesLoopConfig(t *testing.T) {
	t.Parallel()
	def, err := ParsePipeline([]byte(`
id: x
name: x
steps:
  - name: fan_out
    plugin: command
    loop_config:
      collection: items
      item_name: item
      body:
        - name: process
          plugin: command
`))
	require.NoError(t, err)
	step := def.StepByName()["fan_out"]
	require.NotNil(t, step.LoopConfig)
	require.Equal(t, "items", step.LoopConfig.Collection)
	require.Equal(t, workflow.DriverCollection, step.LoopConfig.Driver())
	require.Len(t, step.LoopConfig.Body, 1)
}
