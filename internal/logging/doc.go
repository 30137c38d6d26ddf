// Package logging assembles the structured slog loggers used across
// jellybridge commands.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing (stdout plus an optional log file under the configured log
// directory), and provides a no-op logger for tests and wiring code that
// cannot fail. Component and run identity use the shared Field* attribute
// keys so log lines stay greppable across commands.
//
// Prefer these constructors over hand-rolled slog setup so every command
// emits data with the same shape.
package logging
