package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"backdrop/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		path string
		pass bool
	}{
		{"ok", dir, true},
		{"missing", filepath.Join(dir, "nope"), false},
		{"file", file, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tc.path)
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, detail %q", result.Passed, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "bg.mp4")
	empty := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(full, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckFile("bg", full); !r.Passed {
		t.Fatalf("expected pass, got %q", r.Detail)
	}
	if r := CheckFile("bg", empty); r.Passed || !strings.Contains(r.Detail, "empty") {
		t.Fatalf("expected empty failure, got %+v", r)
	}
	if r := CheckFile("bg", dir); r.Passed {
		t.Fatal("expected failure for directory")
	}
	if r := CheckFile("bg", filepath.Join(dir, "missing")); r.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func stubStatfs(t *testing.T, free uint64, err error) {
	t.Helper()
	orig := statfs
	t.Cleanup(func() { statfs = orig })
	statfs = func(string) (uint64, error) { return free, err }
}

func TestCheckFreeSpace(t *testing.T) {
	stubStatfs(t, 3<<30, nil)
	if r := CheckFreeSpace("tmp", "/tmp", 2<<30); !r.Passed || !strings.Contains(r.Detail, "3.0 GiB free") {
		t.Fatalf("unexpected result %+v", r)
	}
	if r := CheckFreeSpace("tmp", "/tmp", 5<<30); r.Passed || !strings.Contains(r.Detail, "need 5.0 GiB") {
		t.Fatalf("unexpected result %+v", r)
	}
	stubStatfs(t, 0, errors.New("no such device"))
	if r := CheckFreeSpace("tmp", "/tmp", 1); r.Passed {
		t.Fatal("expected failure when statfs fails")
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func TestCheckRedis(t *testing.T) {
	if r := CheckRedis(context.Background(), "127.0.0.1:6379", fakePinger{}); !r.Passed {
		t.Fatalf("expected pass, got %q", r.Detail)
	}
	r := CheckRedis(context.Background(), "127.0.0.1:6379", fakePinger{err: errors.New("connection refused")})
	if r.Passed || !strings.Contains(r.Detail, "connection refused") {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestRunAllSkipsDisabledFeatures(t *testing.T) {
	stubStatfs(t, 100<<30, nil)
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.TempRoot = base
	cfg.Background.Enabled = false
	cfg.Background.DefaultAsset = filepath.Join(base, "default.mp4")
	if err := os.WriteFile(cfg.Background.DefaultAsset, []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 checks for disabled backgrounds, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAllLocalBackend(t *testing.T) {
	stubStatfs(t, 100<<30, nil)
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.TempRoot = base
	cfg.Background.Enabled = true
	cfg.Background.DefaultAsset = filepath.Join(base, "default.mp4")
	cfg.Background.ThemeMetadataPath = filepath.Join(base, "missing.json")
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalDir = base
	cfg.CatalogCache.Enabled = false
	if err := os.WriteFile(cfg.Background.DefaultAsset, []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}

	failed := Failed(RunAll(context.Background(), &cfg))
	if len(failed) != 1 || failed[0].Name != "Theme metadata" {
		t.Fatalf("expected only the metadata check to fail, got %+v", failed)
	}
}
