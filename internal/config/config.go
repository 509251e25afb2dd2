package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	TempRoot string `toml:"temp_root"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Background contains the dynamic background selection settings.
type Background struct {
	Enabled           bool   `toml:"enabled"`
	DefaultAsset      string `toml:"default_asset"`
	ThemeMetadataPath string `toml:"theme_metadata_path"`
	Seed              uint64 `toml:"seed"`
	// Strategy is "concat" (normalize then stream-copy merge) or
	// "filtergraph" (single filter_complex render).
	Strategy     string `toml:"strategy"`
	OutputLabel  string `toml:"output_label"`
	RotateThemes bool   `toml:"rotate_themes"`
	// StaleRunMaxAgeH is the age after which leftover run directories are swept.
	StaleRunMaxAgeH int `toml:"stale_run_max_age_hours"`
}

// Video contains the uniform output profile every clip is normalized to.
type Video struct {
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	FPS             int    `toml:"fps"`
	PixelFormat     string `toml:"pixel_format"`
	Codec           string `toml:"codec"`
	Preset          string `toml:"preset"`
	CRF             int    `toml:"crf"`
	AudioSampleRate int    `toml:"audio_sample_rate"`
}

// Storage selects where background clips come from.
type Storage struct {
	Backend         string `toml:"backend"`
	Bucket          string `toml:"bucket"`
	Endpoint        string `toml:"endpoint"`
	AccountID       string `toml:"account_id"`
	Region          string `toml:"region"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	UsePublicBucket bool   `toml:"use_public_bucket"`
	LocalDir        string `toml:"local_dir"`
}

// Cache contains configuration for the downloaded clip cache.
type Cache struct {
	Enabled    bool `toml:"enabled"`
	MaxGiB     int  `toml:"max_gib"`
	MinFreeGiB int  `toml:"min_free_gib"`
}

// CatalogCache contains configuration for the Redis-backed listing cache.
type CatalogCache struct {
	Enabled       bool   `toml:"enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	TTLSeconds    int    `toml:"ttl_seconds"`
	KeyPrefix     string `toml:"key_prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string  `toml:"format"`
	Level          string  `toml:"level"`
	ProgressBucket float64 `toml:"progress_bucket"`
}

// Config encapsulates all configuration values for backdrop.
//
// Configuration sections by subsystem:
//   - Paths: temp, cache, and log directories
//   - Background: enable flag, fallback asset, theme metadata, seed, strategy
//   - Video: resolution, frame rate, pixel format, encoder settings
//   - Storage: R2/S3 bucket or local clip directory
//   - Cache: downloaded clip cache limits
//   - CatalogCache: Redis listing cache
//   - Logging: log format, level, and progress sampling
type Config struct {
	Paths        Paths        `toml:"paths"`
	Background   Background   `toml:"background"`
	Video        Video        `toml:"video"`
	Storage      Storage      `toml:"storage"`
	Cache        Cache        `toml:"cache"`
	CatalogCache CatalogCache `toml:"catalog_cache"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/backdrop/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("backdrop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a generation run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.TempRoot, c.Paths.LogDir}
	if c.Cache.Enabled {
		dirs = append(dirs, c.BackgroundCacheDir())
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BackgroundCacheDir returns the directory downloaded clips are cached in.
func (c *Config) BackgroundCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "backgrounds")
}

// StaleRunMaxAge returns the sweep threshold for leftover run directories.
func (c *Config) StaleRunMaxAge() time.Duration {
	return time.Duration(c.Background.StaleRunMaxAgeH) * time.Hour
}

// CatalogTTL returns the listing cache lifetime.
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogCache.TTLSeconds) * time.Second
}

// FFmpegBinary returns the ffmpeg executable name used for normalization and merging.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// R2Endpoint returns the S3-compatible endpoint for the configured storage.
// An explicit endpoint wins; otherwise an R2 account ID is expanded.
func (c *Config) R2Endpoint() string {
	if endpoint := strings.TrimSpace(c.Storage.Endpoint); endpoint != "" {
		return endpoint
	}
	if account := strings.TrimSpace(c.Storage.AccountID); account != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", account)
	}
	return ""
}

// AnonymousStorage reports whether requests should be sent unsigned.
func (c *Config) AnonymousStorage() bool {
	return c.Storage.UsePublicBucket || c.Storage.AccessKey == "" || c.Storage.SecretKey == ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
