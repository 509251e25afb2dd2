package config

const (
	defaultTempRoot          = "" // os.TempDir() at normalize time
	defaultCacheDir          = "~/.cache/backdrop"
	defaultLogDir            = "~/.local/share/backdrop/logs"
	defaultDefaultAsset      = "~/.local/share/backdrop/default-background.mp4"
	defaultThemeMetadataPath = "metadata/surah-themes.json"
	defaultSeed              = 99
	defaultStrategy          = StrategyConcat
	defaultOutputLabel       = "bg"
	defaultWidth             = 1280
	defaultHeight            = 720
	defaultFPS               = 30
	defaultPixelFormat       = "yuv420p"
	defaultVideoCodec        = "libx264"
	defaultPreset            = "fast"
	defaultCRF               = 23
	defaultAudioSampleRate   = 48000
	defaultStorageBackend    = BackendR2
	defaultBucket            = "quran-background-videos"
	defaultR2Region          = "auto"
	defaultS3Region          = "us-east-1"
	defaultCacheMaxGiB       = 20
	defaultCacheMinFreeGiB   = 5
	defaultCatalogTTLSeconds = 3600
	defaultCatalogKeyPrefix  = "backdrop:catalog:"
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultProgressBucket    = 5
	defaultStaleRunMaxAgeH   = 24
)

// Storage backends.
const (
	BackendR2    = "r2"
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Assembly strategies.
const (
	StrategyConcat      = "concat"
	StrategyFilterGraph = "filtergraph"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempRoot: defaultTempRoot,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Background: Background{
			Enabled:           true,
			DefaultAsset:      defaultDefaultAsset,
			ThemeMetadataPath: defaultThemeMetadataPath,
			Seed:              defaultSeed,
			Strategy:          defaultStrategy,
			OutputLabel:       defaultOutputLabel,
			RotateThemes:      true,
			StaleRunMaxAgeH:   defaultStaleRunMaxAgeH,
		},
		Video: Video{
			Width:           defaultWidth,
			Height:          defaultHeight,
			FPS:             defaultFPS,
			PixelFormat:     defaultPixelFormat,
			Codec:           defaultVideoCodec,
			Preset:          defaultPreset,
			CRF:             defaultCRF,
			AudioSampleRate: defaultAudioSampleRate,
		},
		Storage: Storage{
			Backend:         defaultStorageBackend,
			Bucket:          defaultBucket,
			UsePublicBucket: true,
		},
		Cache: Cache{
			Enabled:    true,
			MaxGiB:     defaultCacheMaxGiB,
			MinFreeGiB: defaultCacheMinFreeGiB,
		},
		CatalogCache: CatalogCache{
			RedisAddr:  defaultRedisAddr,
			TTLSeconds: defaultCatalogTTLSeconds,
			KeyPrefix:  defaultCatalogKeyPrefix,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			ProgressBucket: defaultProgressBucket,
		},
	}
}
