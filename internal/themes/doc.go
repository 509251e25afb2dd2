// Package themes loads the surah theme metadata and maps a requested verse
// range onto proportional time segments.
//
// The metadata file is JSON keyed by surah number, then by verse range
// ("start-end" or a single verse), with a list of theme names per range:
//
//	{"1": {"1-4": ["mountains", "sky"], "5-7": ["sea"]}}
//
// A Map is immutable after Load and safe to share between concurrent runs.
// Segments returns contiguous fractions of the total duration, weighted by how
// many requested verses each metadata range covers, and RangeForPosition
// resolves a timeline fraction back to its segment.
package themes
