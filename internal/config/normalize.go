package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBackground(); err != nil {
		return err
	}
	c.normalizeVideo()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeCatalogCache()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TempRoot) == "" {
		c.Paths.TempRoot = os.TempDir()
	}
	if c.Paths.TempRoot, err = expandPath(c.Paths.TempRoot); err != nil {
		return fmt.Errorf("paths.temp_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackground() error {
	var err error
	if c.Background.DefaultAsset, err = expandPath(strings.TrimSpace(c.Background.DefaultAsset)); err != nil {
		return fmt.Errorf("background.default_asset: %w", err)
	}
	if strings.TrimSpace(c.Background.ThemeMetadataPath) == "" {
		c.Background.ThemeMetadataPath = defaultThemeMetadataPath
	}
	if c.Background.ThemeMetadataPath, err = expandPath(c.Background.ThemeMetadataPath); err != nil {
		return fmt.Errorf("background.theme_metadata_path: %w", err)
	}
	c.Background.Strategy = strings.ToLower(strings.TrimSpace(c.Background.Strategy))
	if c.Background.Strategy == "" {
		c.Background.Strategy = defaultStrategy
	}
	c.Background.OutputLabel = strings.Trim(strings.TrimSpace(c.Background.OutputLabel), "[]")
	if c.Background.OutputLabel == "" {
		c.Background.OutputLabel = defaultOutputLabel
	}
	if c.Background.StaleRunMaxAgeH <= 0 {
		c.Background.StaleRunMaxAgeH = defaultStaleRunMaxAgeH
	}
	return nil
}

func (c *Config) normalizeVideo() {
	c.Video.PixelFormat = strings.TrimSpace(c.Video.PixelFormat)
	if c.Video.PixelFormat == "" {
		c.Video.PixelFormat = defaultPixelFormat
	}
	c.Video.Codec = strings.TrimSpace(c.Video.Codec)
	if c.Video.Codec == "" {
		c.Video.Codec = defaultVideoCodec
	}
	c.Video.Preset = strings.TrimSpace(c.Video.Preset)
	if c.Video.Preset == "" {
		c.Video.Preset = defaultPreset
	}
	if c.Video.AudioSampleRate <= 0 {
		c.Video.AudioSampleRate = defaultAudioSampleRate
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("R2_ACCESS_KEY_ID"); ok {
			c.Storage.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("R2_SECRET_ACCESS_KEY"); ok {
			c.Storage.SecretKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.AccountID == "" {
		if value, ok := os.LookupEnv("R2_ACCOUNT_ID"); ok {
			c.Storage.AccountID = strings.TrimSpace(value)
		}
	}
	if c.Storage.Endpoint == "" {
		if value, ok := os.LookupEnv("R2_ENDPOINT"); ok {
			c.Storage.Endpoint = strings.TrimSpace(value)
		}
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultBucket
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		if c.Storage.Backend == BackendS3 {
			c.Storage.Region = defaultS3Region
		} else {
			c.Storage.Region = defaultR2Region
		}
	}
	if c.Storage.LocalDir != "" {
		var err error
		if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
			return fmt.Errorf("storage.local_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCatalogCache() {
	if c.CatalogCache.RedisAddr == "" {
		if value, ok := os.LookupEnv("BACKDROP_REDIS_ADDR"); ok {
			c.CatalogCache.RedisAddr = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.CatalogCache.RedisAddr) == "" {
		c.CatalogCache.RedisAddr = defaultRedisAddr
	}
	if c.CatalogCache.TTLSeconds <= 0 {
		c.CatalogCache.TTLSeconds = defaultCatalogTTLSeconds
	}
	if strings.TrimSpace(c.CatalogCache.KeyPrefix) == "" {
		c.CatalogCache.KeyPrefix = defaultCatalogKeyPrefix
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.ProgressBucket <= 0 {
		c.Logging.ProgressBucket = defaultProgressBucket
	}
}
