package assetcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
	_ "modernc.org/sqlite"

	"backdrop/internal/fileutil"
	"backdrop/internal/logging"
)

const (
	indexFileName = "index.db"
	lockFileName  = ".lock"
	lockRetry     = 50 * time.Millisecond
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Entry is one cached clip.
type Entry struct {
	RemoteKey  string    `json:"remote_key"`
	LocalPath  string    `json:"local_path"`
	SizeBytes  int64     `json:"size_bytes"`
	FetchedAt  time.Time `json:"fetched_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Options configures Open.
type Options struct {
	Dir          string
	MaxBytes     int64
	MinFreeBytes int64
	Logger       *slog.Logger
}

// Store maps remote keys to local files.
type Store struct {
	dir          string
	db           *sql.DB
	lock         *flock.Flock
	maxBytes     int64
	minFreeBytes int64
	logger       *slog.Logger
	statfs       statfsFunc
	now          func() time.Time
}

// Open creates the cache directory if needed and opens its index.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("assetcache: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assetcache: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("assetcache: open index: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("assetcache: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("assetcache: apply schema: %w", err)
	}

	return &Store{
		dir:          dir,
		db:           db,
		lock:         flock.New(filepath.Join(dir, lockFileName)),
		maxBytes:     opts.MaxBytes,
		minFreeBytes: opts.MinFreeBytes,
		logger:       logging.NewComponentLogger(opts.Logger, "asset-cache"),
		statfs:       realStatfs,
		now:          time.Now,
	}, nil
}

const schema = `CREATE TABLE IF NOT EXISTS cached_assets (
    remote_key   TEXT PRIMARY KEY,
    local_path   TEXT NOT NULL,
    size_bytes   INTEGER NOT NULL,
    fetched_at   TEXT NOT NULL,
    last_used_at TEXT NOT NULL
)`

// Close releases the index.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// PathFor returns where key is stored, flattening '/' to '_'.
func (s *Store) PathFor(key string) string {
	return filepath.Join(s.dir, FlattenKey(key))
}

// FlattenKey turns a remote key into a single file name.
func FlattenKey(key string) string {
	flat := strings.ReplaceAll(strings.TrimLeft(key, "/"), "/", "_")
	flat = strings.ReplaceAll(flat, string(filepath.Separator), "_")
	if flat == "" || flat == "." || flat == ".." {
		return "_"
	}
	return flat
}

// Lookup returns the cached file for key when it exists and is non-empty.
// A row whose file vanished or is empty is deleted.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool) {
	if s == nil {
		return "", false
	}
	var localPath string
	err := s.db.QueryRowContext(ctx, `SELECT local_path FROM cached_assets WHERE remote_key = ?`, key).Scan(&localPath)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.WarnWithContext(s.logger, "cache index lookup failed", "cache_lookup_failed",
				logging.String("remote_key", key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clip will be downloaded again"),
			)
		}
		localPath = s.PathFor(key)
		if !fileutil.NonEmptyFile(localPath) {
			return "", false
		}
		// File predates the index (or the index was reset); adopt it.
		_ = s.record(ctx, key, localPath)
		return localPath, true
	}
	if !fileutil.NonEmptyFile(localPath) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cached_assets WHERE remote_key = ?`, key)
		return "", false
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE cached_assets SET last_used_at = ? WHERE remote_key = ?`, s.timestamp(), key)
	return localPath, true
}

// Put copies src into the cache under key and returns the cached path.
// src must be non-empty.
func (s *Store) Put(ctx context.Context, key, src string) (string, error) {
	if !fileutil.NonEmptyFile(src) {
		return "", fmt.Errorf("assetcache: refusing to cache empty file %q", src)
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	dst := s.PathFor(key)
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return "", fmt.Errorf("assetcache: store %q: %w", key, err)
	}
	if err := s.record(ctx, key, dst); err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "cached clip", logging.String("remote_key", key), logging.String("path", dst))
	return dst, nil
}

// List returns every indexed entry, most recently used first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT remote_key, local_path, size_bytes, fetched_at, last_used_at
        FROM cached_assets ORDER BY last_used_at DESC, remote_key`)
	if err != nil {
		return nil, fmt.Errorf("assetcache: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			fetched, lastUsed string
		)
		if err := rows.Scan(&e.RemoteKey, &e.LocalPath, &e.SizeBytes, &fetched, &lastUsed); err != nil {
			return nil, fmt.Errorf("assetcache: scan: %w", err)
		}
		e.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
		e.LastUsedAt, _ = time.Parse(time.RFC3339Nano, lastUsed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove deletes one entry and its file.
func (s *Store) Remove(ctx context.Context, key string) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.remove(ctx, key, s.PathFor(key))
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	for _, e := range entries {
		if err := s.remove(ctx, e.RemoteKey, e.LocalPath); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// PruneResult summarizes a prune pass.
type PruneResult struct {
	Removed    int
	FreedBytes int64
	TotalBytes int64
}

// Prune evicts least recently used entries until the cache fits MaxBytes
// and the filesystem keeps MinFreeBytes available. keep is never evicted.
func (s *Store) Prune(ctx context.Context, keep ...string) (PruneResult, error) {
	var result PruneResult
	entries, err := s.List(ctx)
	if err != nil {
		return result, err
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return result, err
	}
	defer unlock()

	protected := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		protected[k] = struct{}{}
	}
	for _, e := range entries {
		result.TotalBytes += e.SizeBytes
	}

	// oldest first
	for i := len(entries) - 1; i >= 0; i-- {
		over, err := s.overLimits(result.TotalBytes)
		if err != nil {
			return result, err
		}
		if !over {
			break
		}
		e := entries[i]
		if _, ok := protected[e.RemoteKey]; ok {
			continue
		}
		if err := s.remove(ctx, e.RemoteKey, e.LocalPath); err != nil {
			return result, err
		}
		result.Removed++
		result.FreedBytes += e.SizeBytes
		result.TotalBytes -= e.SizeBytes
		s.logger.InfoContext(ctx, "pruned cached clip",
			logging.String("remote_key", e.RemoteKey),
			logging.Int64("entry_size_bytes", e.SizeBytes),
		)
	}
	return result, nil
}

func (s *Store) overLimits(total int64) (bool, error) {
	if s.maxBytes > 0 && total > s.maxBytes {
		return true, nil
	}
	if s.minFreeBytes <= 0 {
		return false, nil
	}
	_, free, err := s.statfs(s.dir)
	if err != nil {
		return false, fmt.Errorf("assetcache: statfs: %w", err)
	}
	return int64(free) < s.minFreeBytes, nil
}

func (s *Store) record(ctx context.Context, key, localPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("assetcache: stat %q: %w", localPath, err)
	}
	now := s.timestamp()
	_, err = s.db.ExecContext(ctx, `INSERT INTO cached_assets (remote_key, local_path, size_bytes, fetched_at, last_used_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(remote_key) DO UPDATE SET
            local_path = excluded.local_path,
            size_bytes = excluded.size_bytes,
            fetched_at = excluded.fetched_at,
            last_used_at = excluded.last_used_at`,
		key, localPath, info.Size(), now, now)
	if err != nil {
		return fmt.Errorf("assetcache: record %q: %w", key, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, key, localPath string) error {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assetcache: remove %q: %w", localPath, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_assets WHERE remote_key = ?`, key); err != nil {
		return fmt.Errorf("assetcache: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("assetcache: acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("assetcache: cache directory is locked")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
