// Package config loads and merges SpecForge configuration.
//
// Settings resolve global-to-local: built-in defaults, then the global
// ~/.specforge/config.yaml, then a project-local .specforge/config.yaml
// shallow-merged by top-level section. Command-line flags are applied last
// by the CLI layer and always win.
package config
