package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackground(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackground() error {
	if c.Background.DefaultAsset == "" {
		return errors.New("background.default_asset must be set")
	}
	switch c.Background.Strategy {
	case StrategyConcat, StrategyFilterGraph:
	default:
		return fmt.Errorf("background.strategy must be %q or %q, got %q", StrategyConcat, StrategyFilterGraph, c.Background.Strategy)
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return errors.New("video.width and video.height must be positive")
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return errors.New("video.width and video.height must be even")
	}
	if c.Video.FPS <= 0 || c.Video.FPS > 120 {
		return errors.New("video.fps must be between 1 and 120")
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return errors.New("video.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Background.Enabled && c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case BackendR2:
		if c.Background.Enabled && c.R2Endpoint() == "" {
			return errors.New("storage.endpoint or storage.account_id must be set for the r2 backend (or set R2_ENDPOINT)")
		}
	case BackendS3:
	default:
		return fmt.Errorf("storage.backend must be one of r2, s3, local; got %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxGiB < 0 {
		return errors.New("cache.max_gib must be >= 0")
	}
	if c.Cache.MinFreeGiB < 0 {
		return errors.New("cache.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
