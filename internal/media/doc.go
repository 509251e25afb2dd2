// Package media defines where background clips come from.
//
// A Source lists the clip keys of a theme and resolves a key to a readable
// local file. RemoteSource reads from an S3-compatible bucket and feeds the
// shared asset cache; LocalSource serves a directory tree laid out as
// <root>/<theme>/<file>. CachedCatalog decorates either one with a TTL-bound
// listing cache, normally Redis.
//
// Listings only include video files (mp4, mov, avi, mkv, webm, any case) and
// are sorted so that seeded selection sees a stable candidate order.
package media
