package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"backdrop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a fresh temp directory. Storage is
// the local backend under <base>/clips and the default asset exists.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.TempRoot = filepath.Join(base, "tmp")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Background.Enabled = true
	cfgVal.Background.DefaultAsset = filepath.Join(base, "default.mp4")
	cfgVal.Background.ThemeMetadataPath = filepath.Join(base, "surah-themes.json")
	cfgVal.Storage.Backend = config.BackendLocal
	cfgVal.Storage.LocalDir = filepath.Join(base, "clips")
	cfgVal.CatalogCache.Enabled = false

	for _, dir := range []string{cfgVal.Paths.TempRoot, cfgVal.Storage.LocalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	WriteFile(t, cfgVal.Background.DefaultAsset, 16)

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithThemeMetadata writes raw JSON to the configured metadata path.
func WithThemeMetadata(raw string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Background.ThemeMetadataPath, []byte(raw), 0o644); err != nil {
			b.t.Fatalf("write theme metadata: %v", err)
		}
	}
}

// WithClips creates clip files under the local storage root. Keys are
// "<theme>/<file>"; values are sizes in bytes.
func WithClips(clips map[string]int64) ConfigOption {
	return func(b *configBuilder) {
		WriteClipTree(b.t, b.cfg.Storage.LocalDir, clips)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.TempRoot)
}
