package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"backdrop/internal/fileutil"
	"backdrop/internal/services"
)

// LocalSource serves clips from <root>/<theme>/<file>.
type LocalSource struct {
	root string
}

// NewLocalSource returns a source rooted at root.
func NewLocalSource(root string) (*LocalSource, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "media", "local", "directory not configured", nil)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "media", "local", "open "+root, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "media", "local", root+" is not a directory", nil)
	}
	return &LocalSource{root: root}, nil
}

// Root returns the configured directory.
func (s *LocalSource) Root() string { return s.root }

// ListAssets lists regular video files directly under the theme directory.
// A missing theme directory yields an empty listing.
func (s *LocalSource) ListAssets(ctx context.Context, theme string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	theme = cleanTheme(theme)
	if !insideRoot(theme) {
		return nil, services.Wrap(services.ErrValidation, "media", "local list", fmt.Sprintf("invalid theme %q", theme), nil)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(theme)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransport, "media", "local list", theme, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		keys = append(keys, path.Join(theme, entry.Name()))
	}
	return filterVideos(keys), nil
}

// Fetch resolves key inside the root. Nothing is copied.
func (s *LocalSource) Fetch(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if !insideRoot(key) {
		return "", services.Wrap(services.ErrValidation, "media", "local fetch", fmt.Sprintf("invalid key %q", key), nil)
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if !fileutil.NonEmptyFile(full) {
		return "", services.Wrap(services.ErrNotFound, "media", "local fetch", key, nil)
	}
	return full, nil
}

// insideRoot reports whether a slash-separated key stays under the root.
// Dots inside a file name are fine; ".." segments and absolute paths are not.
func insideRoot(key string) bool {
	return key != "" && filepath.IsLocal(filepath.FromSlash(key))
}
