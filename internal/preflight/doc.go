// Package preflight provides readiness checks for the paths, binaries and
// services backdrop depends on.
//
// The CLI "doctor" command runs RunAll and CheckSystemDeps and renders the
// results; "generate" runs the same checks first and warns about failures
// before a run falls back to the default background. Each check is gated by
// its config toggle, so disabled features are skipped.
package preflight
