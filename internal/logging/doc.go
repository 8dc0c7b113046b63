// Package logging configures structured slog loggers with console and JSON
// output and provides shared attribute helpers.
package logging
