// Package transcode runs ffmpeg as a black box and reports its progress.
//
// Every invocation is started with "-progress pipe:1" so the key=value
// progress blocks ffmpeg writes to stdout can be turned into percent, elapsed
// and ETA samples. Samples are logged through a bucketed ProgressSampler and,
// when an emitter is configured, written as machine-readable
// "PROGRESS {json}" lines for a supervising process. A non-zero exit is
// reported as an encoding error carrying the tail of ffmpeg's stderr.
package transcode
