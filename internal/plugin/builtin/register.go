package builtin

import "github.com/flowforge/flowforge/internal/plugin"

// RegisterAll registers every reference plugin into catalog, skipping any
// name the descriptor excludes. cmd/flowctl calls this once at startup
// before the catalog is validated.
func RegisterAll(catalog *plugin.Catalog, enabled func(name string) bool) error {
	if enabled == nil {
		enabled = func(string) bool { return true }
	}
	plugins := []plugin.Plugin{NewCommand(), NewTemplate(), NewGitClone()}
	for _, p := range plugins {
		if !enabled(p.Metadata().Name) {
			continue
		}
		if err := catalog.Register(p); err != nil {
			return err
		}
	}
	return nil
}
