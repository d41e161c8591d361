// Package config provides configuration loading for stategraph runtimes.
//
// Config wraps a map[string]any with typed accessors and safe defaults,
// loadable from YAML or JSON files. Runtime translates a loaded config
// into executor settings (iteration limits, checkpoint backend,
// observability switches).
package config
