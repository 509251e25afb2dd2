// Package planner turns verse-range segments and a target duration into an
// ordered list of trimmed background clips.
//
// The planner walks a simulated timeline from zero. At each step it resolves
// the verse range active at the current position, asks the selector for a
// (theme, asset) pick, fetches and probes the asset, trims it to the range
// boundary or the target end, and advances. Listing failures retire a theme
// for the rest of the run; fetch and probe failures skip the step without
// advancing. The walk stops at the target or after a bounded number of
// iterations, in which case the plan is marked as needing to loop.
package planner
