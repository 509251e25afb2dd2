// Package assetcache keeps downloaded background clips on local disk so later
// runs skip the transfer.
//
// Files live flat under the cache directory with '/' in the remote key
// replaced by '_'. A SQLite index records each key's size and last use so the
// CLI can list entries and Prune can evict the least recently used clips when
// the cache exceeds its size budget or the filesystem runs low on space. An
// entry is only trusted while its file exists and is non-empty. Mutations hold
// an exclusive flock so concurrent runs can share one cache directory.
package assetcache
