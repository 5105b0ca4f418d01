package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validPipeline() PipelineDefinition {
	return PipelineDefinition{
		Name: "deploy",
		Steps: []StepConfig{
			{Name: "build", Plugin: "command", FailOnError: true},
			{Name: "test", Plugin: "command", FailOnError: true, DependsOn: []Dependency{{Step: "build"}}},
		},
	}
}

func TestValidateShapeAcceptsWellFormedPipeline(t *testing.T) {
	t.Parallel()

	require.NoError(t, validPipeline().ValidateShape())
}

func TestValidateShapeRejectsEmptyName(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Name = ""
	require.Error(t, p.ValidateShape())
}

func TestValidateShapeRejectsDuplicateStepNames(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Steps = append(p.Steps, StepConfig{Name: "build", Plugin: "command"})
	require.Error(t, p.ValidateShape())
}

func TestValidateShapeRejectsBadStepNameCharacters(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Steps[0].Name = "build step!"
	require.Error(t, p.ValidateShape())
}

func TestValidateShapeRejectsMissingPlugin(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Steps[0].Plugin = ""
	require.Error(t, p.ValidateShape())
}

func TestLoopConfigDriverPrecedence(t *testing.T) {
	t.Parallel()

	count := 3
	l := LoopConfig{Collection: "items", Count: &count, Condition: "more"}
	require.Equal(t, DriverCollection, l.Driver())

	l = LoopConfig{Count: &count, Condition: "more"}
	require.Equal(t, DriverCount, l.Driver())

	l = LoopConfig{Condition: "more"}
	require.Equal(t, DriverCondition, l.Driver())
}

func TestLoopConfigRequiresOneDriver(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Steps[0].LoopConfig = &LoopConfig{}
	require.Error(t, p.ValidateShape())
}

func TestLoopConfigRejectsNegativeCount(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	negative := -1
	p.Steps[0].LoopConfig = &LoopConfig{Count: &negative}
	require.Error(t, p.ValidateShape())
}

func TestStepByNameIndexesAllSteps(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	m := p.StepByName()
	require.Contains(t, m, "build")
	require.Contains(t, m, "test")
}

func TestDependencyNamesIgnoresPredicate(t *testing.T) {
	t.Parallel()

	predicate := "ok"
	s := StepConfig{DependsOn: []Dependency{{Step: "a"}, {Step: "b", Predicate: &predicate}}}
	require.Equal(t, []string{"a", "b"}, s.DependencyNames())
}
