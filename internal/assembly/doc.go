// Package assembly turns planned clips into one playable background.
//
// Two strategies are provided. The filter-graph strategy builds a typed
// Graph (trim, scale, crop, fps, format, setsar, concat) that can be
// serialized into a larger one-pass ffmpeg command or rendered standalone.
// The concat strategy normalizes every clip into an identical encoding, then
// merges them with the concat demuxer and a stream copy; clips that fail to
// normalize are dropped instead of failing the whole run.
package assembly
