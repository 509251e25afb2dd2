package media

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"backdrop/internal/logging"
)

// CatalogCache stores theme listings.
type CatalogCache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, keys []string, ttl time.Duration) error
}

// CachedCatalog caches ListAssets results of an inner Source. Cache failures
// are logged and fall through to the inner source.
type CachedCatalog struct {
	inner     Source
	cache     CatalogCache
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedCatalog wraps inner. namespace separates backends sharing one cache.
func NewCachedCatalog(inner Source, cache CatalogCache, namespace string, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{
		inner:     inner,
		cache:     cache,
		namespace: strings.TrimSpace(namespace),
		ttl:       ttl,
		logger:    logging.NewComponentLogger(logger, "catalog"),
	}
}

// ForRun binds the inner source to dir when it is run scoped.
func (c *CachedCatalog) ForRun(dir string) Source {
	clone := *c
	clone.inner = BindRun(c.inner, dir)
	return &clone
}

// ListAssets serves theme from the cache, populating it on a miss. Empty
// listings are not cached.
func (c *CachedCatalog) ListAssets(ctx context.Context, theme string) ([]string, error) {
	key := c.namespace + ":" + cleanTheme(theme)
	if keys, ok, err := c.cache.Get(ctx, key); err != nil {
		c.warn("catalog cache read failed", theme, err)
	} else if ok {
		c.logger.Debug("catalog cache hit", logging.String("theme", theme), logging.Int("assets", len(keys)))
		return filterVideos(keys), nil
	}

	keys, err := c.inner.ListAssets(ctx, theme)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		if err := c.cache.Set(ctx, key, keys, c.ttl); err != nil {
			c.warn("catalog cache write failed", theme, err)
		}
	}
	return keys, nil
}

// Fetch delegates to the inner source.
func (c *CachedCatalog) Fetch(ctx context.Context, key string) (string, error) {
	return c.inner.Fetch(ctx, key)
}

func (c *CachedCatalog) warn(msg, theme string, err error) {
	logging.WarnWithContext(c.logger, msg, "catalog_cache_error",
		logging.String("theme", theme),
		logging.Error(err),
		logging.String(logging.FieldImpact, "listing served from source"),
	)
}

// redisClient is the part of *redis.Client used by RedisCatalogCache.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCatalogCache stores listings as JSON arrays under prefix+key.
type RedisCatalogCache struct {
	client redisClient
	prefix string
}

// RedisOptions configures NewRedisCatalogCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisCatalogCache connects lazily; the returned closer releases the pool.
func NewRedisCatalogCache(opts RedisOptions) (*RedisCatalogCache, func() error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisCatalogCache{client: client, prefix: opts.Prefix}, client.Close
}

// Get returns the cached listing for key. A missing key is not an error.
func (r *RedisCatalogCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

// Set stores keys with ttl. A zero ttl keeps the entry until evicted.
func (r *RedisCatalogCache) Set(ctx context.Context, key string, keys []string, ttl time.Duration) error {
	payload, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, payload, ttl).Err()
}
