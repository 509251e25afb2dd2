package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"backdrop/internal/assetcache"
	"backdrop/internal/fileutil"
	"backdrop/internal/logging"
	"backdrop/internal/objectstore"
	"backdrop/internal/services"
)

// Bucket is the object store surface RemoteSource needs.
type Bucket interface {
	List(ctx context.Context, prefix string) ([]objectstore.Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// RemoteSource lists and downloads clips from a bucket laid out as
// <theme>/<file>.
type RemoteSource struct {
	bucket   Bucket
	cache    Cache
	logger   *slog.Logger
	dir      string
	notFound func(error) bool
}

// RemoteOptions configures a RemoteSource.
type RemoteOptions struct {
	// Cache is optional; without it every Fetch downloads.
	Cache  Cache
	Logger *slog.Logger
	// DownloadDir receives downloads; ForRun overrides it per run.
	DownloadDir string
}

// NewRemoteSource wraps bucket.
func NewRemoteSource(bucket Bucket, opts RemoteOptions) *RemoteSource {
	return &RemoteSource{
		bucket:   bucket,
		cache:    opts.Cache,
		logger:   logging.NewComponentLogger(opts.Logger, "media"),
		dir:      opts.DownloadDir,
		notFound: objectstore.IsNotFound,
	}
}

// ForRun returns a copy that downloads into dir.
func (s *RemoteSource) ForRun(dir string) Source {
	clone := *s
	clone.dir = dir
	return &clone
}

// ListAssets lists the video keys under "<theme>/".
func (s *RemoteSource) ListAssets(ctx context.Context, theme string) ([]string, error) {
	theme = cleanTheme(theme)
	if theme == "" {
		return nil, services.Wrap(services.ErrValidation, "media", "remote list", "empty theme", nil)
	}
	objects, err := s.bucket.List(ctx, theme+"/")
	if err != nil {
		return nil, s.classify("remote list", theme, err)
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return filterVideos(keys), nil
}

// Fetch returns a cached copy of key, downloading it on a miss.
func (s *RemoteSource) Fetch(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "media", "remote fetch", "empty key", nil)
	}
	if s.cache != nil {
		if cached, ok := s.cache.Lookup(ctx, key); ok {
			s.logger.Debug("asset cache hit", logging.String("asset_key", key))
			return cached, nil
		}
	}

	downloaded, err := s.download(ctx, key)
	if err != nil {
		return "", err
	}
	if s.cache == nil {
		return downloaded, nil
	}
	cached, err := s.cache.Put(ctx, key, downloaded)
	if err != nil {
		logging.WarnWithContext(s.logger, "asset cache store failed", "cache_store_failed",
			logging.String("asset_key", key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "using run-local download"),
		)
		return downloaded, nil
	}
	_ = os.Remove(downloaded)
	return cached, nil
}

func (s *RemoteSource) download(ctx context.Context, key string) (string, error) {
	dir := s.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "media", "remote fetch", "create download dir", err)
	}
	target := filepath.Join(dir, assetcache.FlattenKey(key))

	body, err := s.bucket.Get(ctx, key)
	if err != nil {
		return "", s.classify("remote fetch", key, err)
	}
	defer body.Close()

	file, err := os.Create(target)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "media", "remote fetch", "create "+target, err)
	}
	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrTransport, "media", "remote fetch", key, copyErr)
	}
	if written == 0 || !fileutil.NonEmptyFile(target) {
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrTransport, "media", "remote fetch", fmt.Sprintf("%s downloaded empty", key), nil)
	}
	s.logger.Debug("asset downloaded",
		logging.String("asset_key", key),
		logging.Int64("bytes", written),
	)
	return target, nil
}

func (s *RemoteSource) classify(operation, subject string, err error) error {
	if s.notFound != nil && s.notFound(err) {
		return services.Wrap(services.ErrNotFound, "media", operation, subject, err)
	}
	return services.Wrap(services.ErrTransport, "media", operation, subject, err)
}
