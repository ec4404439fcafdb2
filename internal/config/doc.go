// Package config loads, normalizes, and validates redub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the daemon and CLI
// need: transport binds, retry and circuit-breaker policy, dubbing pipeline
// tolerances, and external service credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
