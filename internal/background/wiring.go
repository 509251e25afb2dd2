package background

import (
	"context"
	"errors"
	"log/slog"

	"backdrop/internal/assembly"
	"backdrop/internal/assetcache"
	"backdrop/internal/config"
	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/media/ffprobe"
	"backdrop/internal/objectstore"
	"backdrop/internal/planner"
	"backdrop/internal/themes"
	"backdrop/internal/transcode"
)

const gib = int64(1) << 30

// ProfileFromConfig returns the output profile described by cfg.
func ProfileFromConfig(cfg *config.Config) assembly.Profile {
	return assembly.Profile{
		Width:           cfg.Video.Width,
		Height:          cfg.Video.Height,
		FPS:             cfg.Video.FPS,
		PixelFormat:     cfg.Video.PixelFormat,
		Codec:           cfg.Video.Codec,
		Preset:          cfg.Video.Preset,
		CRF:             cfg.Video.CRF,
		AudioSampleRate: cfg.Video.AudioSampleRate,
		OutputLabel:     cfg.Background.OutputLabel,
	}
}

// ProbeWith adapts ffprobe to the planner's probe signature.
func ProbeWith(binary string) planner.ProbeFunc {
	return func(ctx context.Context, path string) (float64, error) {
		clip, err := ffprobe.Probe(ctx, binary, path)
		if err != nil {
			return 0, err
		}
		return clip.DurationSeconds, nil
	}
}

// OpenAssetCache opens the download cache configured by cfg.
func OpenAssetCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*assetcache.Store, error) {
	return assetcache.Open(ctx, assetcache.Options{
		Dir:          cfg.BackgroundCacheDir(),
		MaxBytes:     int64(cfg.Cache.MaxGiB) * gib,
		MinFreeBytes: int64(cfg.Cache.MinFreeGiB) * gib,
		Logger:       logger,
	})
}

// OpenSource builds the clip source described by cfg. The returned closer
// prunes and closes the asset cache and releases the Redis pool.
func OpenSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (media.Source, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	componentLogger := logging.NewComponentLogger(logger, "background")
	var src media.Source
	namespace := cfg.Storage.Backend
	if cfg.Storage.Backend == config.BackendLocal {
		local, err := media.NewLocalSource(cfg.Storage.LocalDir)
		if err != nil {
			return nil, closeAll, err
		}
		src = local
	} else {
		store, err := objectstore.New(ctx, objectstore.Config{
			Bucket:       cfg.Storage.Bucket,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.R2Endpoint(),
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			Anonymous:    cfg.AnonymousStorage(),
			UsePathStyle: cfg.Storage.Backend == config.BackendR2 || cfg.R2Endpoint() != "",
		})
		if err != nil {
			return nil, closeAll, err
		}
		var cache media.Cache
		if cfg.Cache.Enabled {
			assets, err := OpenAssetCache(ctx, cfg, logger)
			if err != nil {
				logging.WarnWithContext(componentLogger, "asset cache unavailable", "asset_cache_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "clips downloaded per run"),
					logging.String(logging.FieldErrorHint, "check paths.cache_dir permissions"),
				)
			} else {
				cache = assets
				closers = append(closers, func() error {
					if _, err := assets.Prune(context.Background()); err != nil {
						componentLogger.Debug("asset cache prune failed", logging.Error(err))
					}
					return assets.Close()
				})
			}
		}
		src = media.NewRemoteSource(store, media.RemoteOptions{
			Cache:       cache,
			Logger:      logger,
			DownloadDir: cfg.Paths.TempRoot,
		})
		namespace = cfg.Storage.Backend + ":" + cfg.Storage.Bucket
	}

	if cfg.CatalogCache.Enabled {
		catalogCache, closeRedis := media.NewRedisCatalogCache(media.RedisOptions{
			Addr:     cfg.CatalogCache.RedisAddr,
			Password: cfg.CatalogCache.RedisPassword,
			DB:       cfg.CatalogCache.RedisDB,
			Prefix:   cfg.CatalogCache.KeyPrefix,
		})
		closers = append(closers, closeRedis)
		src = media.NewCachedCatalog(src, catalogCache, namespace, cfg.CatalogTTL(), logger)
	}
	return src, closeAll, nil
}

// Environment bundles what NewFromConfig needs beyond cfg.
type Environment struct {
	Themes     *themes.Map
	Source     media.Source
	Runner     transcode.Runner
	OutputPath string
	Logger     *slog.Logger
}

// NewFromConfig builds a Manager for req using cfg and env.
func NewFromConfig(cfg *config.Config, req Request, env Environment) *Manager {
	return New(Options{
		Enabled:      cfg.Background.Enabled,
		DefaultAsset: cfg.Background.DefaultAsset,
		TempRoot:     cfg.Paths.TempRoot,
		Themes:       env.Themes,
		Request:      req,
		Seed:         cfg.Background.Seed,
		RotateThemes: cfg.Background.RotateThemes,
		Strategy:     cfg.Background.Strategy,
		Profile:      ProfileFromConfig(cfg),
		Source:       env.Source,
		Probe:        ProbeWith(cfg.FFprobeBinary()),
		Runner:       env.Runner,
		OutputPath:   env.OutputPath,
		Logger:       env.Logger,
	})
}
