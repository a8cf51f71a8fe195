// Package config loads, normalizes, and validates openbq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// OPENBQ_OFIQ_COMMAND. The Config type centralizes every knob the CLI and the
// job coordinator need; JobOptions is the typed, validated description of a
// single assessment job.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
