package media

import (
	"context"
	"path"
	"slices"
	"strings"
)

// Source lists and resolves background clips.
type Source interface {
	// ListAssets returns the sorted video keys for theme.
	ListAssets(ctx context.Context, theme string) ([]string, error)
	// Fetch returns a local path to a non-empty copy of key.
	Fetch(ctx context.Context, key string) (string, error)
}

// RunScoped is implemented by sources that need a per-run scratch directory.
// ForRun returns a copy bound to dir; the receiver is left unchanged.
type RunScoped interface {
	ForRun(dir string) Source
}

// Cache is the download cache consulted by RemoteSource.
type Cache interface {
	Lookup(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, src string) (string, error)
}

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

// IsVideoFile reports whether name carries a supported video extension.
func IsVideoFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return slices.Contains(videoExtensions, ext)
}

// BindRun returns src bound to dir when it supports run scoping.
func BindRun(src Source, dir string) Source {
	if scoped, ok := src.(RunScoped); ok {
		return scoped.ForRun(dir)
	}
	return src
}

func filterVideos(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if IsVideoFile(key) {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

func cleanTheme(theme string) string {
	return strings.Trim(strings.TrimSpace(theme), "/")
}
