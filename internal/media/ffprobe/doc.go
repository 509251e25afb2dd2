// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes its streams and format sections; Probe
// reduces that to the clip duration and frame size the segment planner uses,
// rejecting files without a video stream or with a zero or malformed
// duration.
package ffprobe
