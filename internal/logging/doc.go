// Package logging builds slog loggers with redub's console and JSON handlers
// and standardizes the structured field names used across the daemon.
//
// The console handler renders human-friendly lines with optional ANSI color
// when attached to a terminal; the JSON handler emits machine-readable events
// for log files. Context helpers lift job, stage, speaker, and correlation
// identifiers out of a context.Context into log attributes.
package logging
