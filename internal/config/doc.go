// Package config loads, validates, and normalizes likeness configuration.
//
// Configuration lives in a TOML file (default ~/.config/likeness/config.toml,
// with a project-local likeness.toml fallback). Load applies defaults, expands
// paths, pulls secrets from the environment, and validates every section so
// downstream code can trust the values it receives. The enrollment and
// verification sections carry all scoring weights, targets, and thresholds as
// one explicit value handed to the engines at construction.
package config
