package plugin

import (
	"os"
	"strings"
)

// DependencyPolicy controls how the catalog responds to dependency
// validation failures at load time.
type DependencyPolicy string

const (
	// PolicyStrict fails catalog construction when dependency validation fails.
	PolicyStrict DependencyPolicy = "strict"
	// PolicyGraceful disables the affected plugins and continues.
	PolicyGraceful DependencyPolicy = "graceful"
)

// AccessPolicy controls how a plugin reading an undeclared dependency is
// handled (reserved for dependency-injecting plugins; most builtins do not
// use this path).
type AccessPolicy string

const (
	AccessStrict AccessPolicy = "strict"
	AccessWarn   AccessPolicy = "warn"
	AccessOff    AccessPolicy = "off"
)

// CatalogConfig configures catalog validation and dependency access
// policies.
type CatalogConfig struct {
	DependencyPolicy DependencyPolicy
	AccessPolicy     AccessPolicy
}

// DefaultCatalogConfig returns environment-aware defaults: CI runs fail
// fast on a bad catalog, interactive runs degrade gracefully.
func DefaultCatalogConfig() *CatalogConfig {
	if isCIEnvironment() {
		return &CatalogConfig{DependencyPolicy: PolicyStrict, AccessPolicy: AccessStrict}
	}
	return &CatalogConfig{DependencyPolicy: PolicyGraceful, AccessPolicy: AccessWarn}
}

func isCIEnvironment() bool {
	ciEnvVars := []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_HOME"}
	for _, key := range ciEnvVars {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" && strings.ToLower(value) != "false" && value != "0" {
			return true
		}
	}
	return false
}
