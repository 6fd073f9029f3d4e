// Package logging builds the slog loggers used across MusicManager and
// defines the standardized attribute keys components attach to records.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log shippers. Loggers derive per-track
// context (track ID, stage, request ID) from context.Context via
// WithContext so call sites never thread those fields by hand.
package logging
