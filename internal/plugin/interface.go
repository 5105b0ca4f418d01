// Package plugin defines the typed contract every workflow plugin
// implements, the catalog that resolves plugin references by name, and the
// error kinds a plugin invocation can raise.
package plugin

import "context"

// Input is the resolved payload an InputResolver builds for one step
// invocation. Plugins that want a typed view decode specific keys
// themselves; plugins happy with the generic map use it directly.
type Input map[string]interface{}

// Output is what a plugin returns on success. A scalar result may be
// wrapped as Output{"result": value} by the plugin itself; the OutputHandler
// does not impose a shape beyond "JSON-marshalable".
type Output map[string]interface{}

// ArtifactSave is a file a plugin wants persisted as part of its
// invocation. The OutputHandler turns these into artifact.Command values
// under the step's task directory.
type ArtifactSave struct {
	Filename    string
	Content     []byte
	ContentType string // "json", "text", "binary", "unknown"
	Subdir      string
	Metadata    map[string]interface{}
}

// ContextView is the narrow slice of the run context a plugin is allowed to
// touch directly: reading the step's own prior-iteration markers (for
// loop-resume bookkeeping) and reading the task id for artifact naming.
// Everything else flows through Input/Output.
type ContextView interface {
	TaskID() string
	Get(key string) (interface{}, bool)
}

// Call bundles everything a plugin needs to perform one invocation.
type Call struct {
	StepName string
	Input    Input
	Context  ContextView
}

// Result is a successful invocation's output.
type Result struct {
	Output    Output
	Artifacts []ArtifactSave
}

// Plugin is the typed contract every catalog entry implements. Invoke
// performs one unit of work and returns either a Result or one of the typed
// pkg/werrors errors built by this package's NewInputError,
// NewRetryableError, NewPluginError and NewSuspended (InputError,
// RetryableError, PluginError, PluginSuspendedError) — never a bare error,
// so the invoker can classify the outcome without string matching.
type Plugin interface {
	Metadata() PluginMetadata
	Invoke(ctx context.Context, call Call) (Result, error)
}

// Initializer lets a plugin receive a handle to the catalog it was
// registered into, to resolve its own declared dependencies eagerly. Most
// plugins do not need this; the catalog detects it via type assertion.
type Initializer interface {
	Init(catalog *Catalog) error
}
