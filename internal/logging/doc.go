// Package logging builds the slog loggers used across labelflow: a
// single-line console handler for interactive use, a JSON handler for
// machine consumption, and attribute helpers with the standardized field
// names components share.
package logging
