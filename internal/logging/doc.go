// Package logging builds the application's slog loggers and provides the
// standardized attribute helpers and context plumbing used across components.
package logging
