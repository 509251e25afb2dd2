// Package background prepares the background video for one recitation
// request.
//
// Manager drives a small state machine: Disabled or Enabled, then Planning,
// Collecting and Assembling, ending in Ready or Fallback. Every failure along
// the way is logged, recorded on the Result, and answered with the configured
// default asset, so callers always receive a playable path. Each Manager owns
// its selector, its selection state and a unique run directory under the temp
// root; Cleanup removes that directory and must be called by the owner once
// the returned asset is no longer needed.
//
// OpenSource and ProfileFromConfig assemble the clip source and output
// profile from configuration.
package background
