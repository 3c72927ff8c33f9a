// Package config loads, normalizes, and validates labelflow's TOML
// configuration. Load resolves the config path (explicit flag, then the
// default user config, then a project-local labelflow.toml), applies
// defaults for unset fields, expands ~ in paths, and rejects unusable
// values before anything else starts.
package config
