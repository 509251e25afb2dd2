// Package logging assembles structured slog loggers and formatting helpers used
// across the background pipeline.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag lines with run IDs and stage names. Warnings carry
// event_type, error_hint, and impact fields so a skipped clip or a fallback is
// explained in one line. A no-op logger is provided for tests.
package logging
