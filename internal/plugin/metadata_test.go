package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPluginMetadataValidateRejectsBadVersion(t *testing.T) {
	t.Parallel()

	m := PluginMetadata{Name: "echo", Version: "not-a-version"}
	require.Error(t, m.Validate())
}

func TestPluginMetadataValidateRejectsSelfDependency(t *testing.T) {
	t.Parallel()

	m := PluginMetadata{Name: "echo", Version: "1.0.0", Dependencies: []Dependency{{Name: "echo"}}}
	require.Error(t, m.Validate())
}

func TestPluginMetadataValidateRejectsDuplicateDependency(t *testing.T) {
	t.Parallel()

	m := PluginMetadata{
		Name: "echo", Version: "1.0.0",
		Dependencies: []Dependency{{Name: "a"}, {Name: "a"}},
	}
	require.Error(t, m.Validate())
}

func TestPluginMetadataValidateAcceptsWellFormed(t *testing.T) {
	t.Parallel()

	m := PluginMetadata{Name: "echo", Version: "1.2.3", APIVersion: "1.x"}
	require.NoError(t, m.Validate())
}
