// Package logs reads backdrop's log file for the `backdrop logs` command.
//
// Tail returns the last N lines or resumes from a byte offset, optionally
// waiting for new output. Matchers narrow the view to one generation run
// (via its run_id field) or to lines containing some text, and work with both
// the console and the JSON log format.
package logs
