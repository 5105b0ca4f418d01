package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	apiverPattern = regexp.MustCompile(`^\d+\.x$`)
)

// PluginMetadata describes a catalog entry's identity and its declared
// dependencies on other plugins.
type PluginMetadata struct {
	Name         string
	Version      string
	APIVersion   string
	Dependencies []Dependency
	Description  string
}

// Dependency is one plugin's declared reliance on another, optionally
// constrained to a major version.
type Dependency struct {
	Name              string
	VersionConstraint *VersionConstraint
}

// Validate checks that metadata is well-formed before the plugin is
// accepted into the catalog.
func (m PluginMetadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("plugin metadata requires a non-empty name")
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("plugin %q has invalid version %q, expected X.Y.Z", m.Name, m.Version)
	}
	if m.APIVersion != "" && !apiverPattern.MatchString(m.APIVersion) {
		return fmt.Errorf("plugin %q has invalid api version %q, expected N.x", m.Name, m.APIVersion)
	}

	seen := make(map[string]struct{}, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if err := dep.validate(m.Name); err != nil {
			return err
		}
		if dep.Name == m.Name {
			return fmt.Errorf("plugin %q cannot depend on itself", m.Name)
		}
		if _, dup := seen[dep.Name]; dup {
			return fmt.Errorf("plugin %q lists dependency %q more than once", m.Name, dep.Name)
		}
		seen[dep.Name] = struct{}{}
	}
	return nil
}

func (d Dependency) validate(owner string) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("plugin %q declares a dependency with an empty name", owner)
	}
	if d.VersionConstraint != nil && d.VersionConstraint.MajorVersion < 0 {
		return fmt.Errorf("plugin %q declares dependency %q with a negative major version constraint", owner, d.Name)
	}
	return nil
}
