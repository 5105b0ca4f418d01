package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/flowforge/flowforge/internal/plugin"
)

// CatalogDescriptor is the on-disk (TOML) description of which builtin
// plugins a deployment enables and under what dependency/access policy,
// read once at startup by cmd/flowctl before any pipeline runs.
type CatalogDescriptor struct {
	DependencyPolicy string   `toml:"dependency_policy"`
	AccessPolicy     string   `toml:"access_policy"`
	Enabled          []string `toml:"enabled_plugins"`
}

// LoadCatalogDescriptor reads a TOML catalog descriptor from path.
func LoadCatalogDescriptor(path string) (CatalogDescriptor, error) {
	var d CatalogDescriptor
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return d, fmt.Errorf("config: decode catalog descriptor %s: %w", path, err)
	}
	return d, nil
}

// ToCatalogConfig converts the descriptor's policy names into the strongly
// typed plugin.CatalogConfig, falling back to plugin.DefaultCatalogConfig's
// environment-aware choice when a field is left blank.
func (d CatalogDescriptor) ToCatalogConfig() *plugin.CatalogConfig {
	cfg := plugin.DefaultCatalogConfig()
	if d.DependencyPolicy != "" {
		cfg.DependencyPolicy = plugin.DependencyPolicy(d.DependencyPolicy)
	}
	if d.AccessPolicy != "" {
		cfg.AccessPolicy = plugin.AccessPolicy(d.AccessPolicy)
	}
	return cfg
}

// IsEnabled reports whether name was listed under enabled_plugins. An
// empty Enabled list means "no restriction" — every builtin the caller
// registers is kept.
func (d CatalogDescriptor) IsEnabled(name string) bool {
	if len(d.Enabled) == 0 {
		return true
	}
	for _, n := range d.Enabled {
		if n == name {
			return true
		}
	}
	return false
}
