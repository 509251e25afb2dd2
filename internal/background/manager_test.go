package background_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backdrop/internal/background"
	"backdrop/internal/config"
	"backdrop/internal/media"
	"backdrop/internal/planner"
	"backdrop/internal/services"
	"backdrop/internal/testsupport"
	"backdrop/internal/themes"
	"backdrop/internal/transcode"
)

const metadata = `{"1": {"1-4": ["sea"], "5-7": ["sky", "rain"]}}`

type writingRunner struct {
	jobs []transcode.Job
}

func (r *writingRunner) Run(_ context.Context, job transcode.Job) error {
	r.jobs = append(r.jobs, job)
	out := job.Args[len(job.Args)-1]
	if out == "-y" {
		out = job.Args[len(job.Args)-2]
	}
	return os.WriteFile(out, []byte("video"), 0o644)
}

// brokenRunner writes every output but reports failure for failStage jobs,
// leaving a partial file behind.
type brokenRunner struct {
	writingRunner
	failStage string
}

func (r *brokenRunner) Run(ctx context.Context, job transcode.Job) error {
	if err := r.writingRunner.Run(ctx, job); err != nil {
		return err
	}
	if job.Stage == r.failStage {
		return services.Wrap(services.ErrEncoding, "transcode", job.Stage, "ffmpeg exited with status 1", nil)
	}
	return nil
}

func fixedProbe(seconds float64) planner.ProbeFunc {
	return func(context.Context, string) (float64, error) { return seconds, nil }
}

type failingSource struct{ panicOnList bool }

func (s failingSource) ListAssets(context.Context, string) ([]string, error) {
	if s.panicOnList {
		panic("listing exploded")
	}
	return nil, services.Wrap(services.ErrTransport, "media", "list", "", errors.New("network unreachable"))
}

func (failingSource) Fetch(context.Context, string) (string, error) {
	return "", services.ErrNotFound
}

type fixture struct {
	cfg    *config.Config
	themes *themes.Map
	source media.Source
	runner *writingRunner
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithThemeMetadata(metadata),
		testsupport.WithClips(map[string]int64{
			"sea/a.mp4": 64, "sea/b.mp4": 64,
			"sky/a.mov":   64,
			"rain/a.webm": 64,
		}),
	)
	m, err := themes.Load(cfg.Background.ThemeMetadataPath)
	if err != nil {
		t.Fatalf("themes.Load: %v", err)
	}
	src, err := media.NewLocalSource(cfg.Storage.LocalDir)
	if err != nil {
		t.Fatalf("NewLocalSource: %v", err)
	}
	return fixture{cfg: cfg, themes: m, source: src, runner: &writingRunner{}}
}

func (f fixture) manager(mutate func(*background.Options)) *background.Manager {
	opts := background.Options{
		Enabled:      true,
		DefaultAsset: f.cfg.Background.DefaultAsset,
		TempRoot:     f.cfg.Paths.TempRoot,
		Themes:       f.themes,
		Request:      background.Request{Surah: 1, From: 1, To: 7},
		Seed:         99,
		RotateThemes: true,
		Strategy:     config.StrategyConcat,
		Profile:      background.ProfileFromConfig(f.cfg),
		Source:       f.source,
		Probe:        fixedProbe(4),
		Runner:       f.runner,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return background.New(opts)
}

func TestDisabledReturnsDefaultAsset(t *testing.T) {
	f := newFixture(t)
	m := f.manager(func(o *background.Options) { o.Enabled = false })
	result := m.Prepare(context.Background(), 30)
	if result.Path != f.cfg.Background.DefaultAsset || result.State != background.StateDisabled || result.Fallback {
		t.Fatalf("unexpected result %+v", result)
	}
	if m.RunDir() != "" || len(f.runner.jobs) != 0 {
		t.Fatal("disabled manager should not touch anything")
	}
}

func TestPrepareConcatStrategy(t *testing.T) {
	f := newFixture(t)
	exported := filepath.Join(testsupport.BaseDir(f.cfg), "out", "background.mp4")
	m := f.manager(func(o *background.Options) { o.OutputPath = exported })

	result := m.Prepare(context.Background(), 30)
	if result.Err != nil || result.Fallback {
		t.Fatalf("unexpected fallback: %v", result.Err)
	}
	if result.State != background.StateReady || m.State() != background.StateReady {
		t.Fatalf("state = %s/%s", result.State, m.State())
	}
	if result.Path != exported || result.Covered != 30 || result.Partial {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Segments != 9 {
		t.Fatalf("expected 9 clips for 30s of 4s clips, got %d", result.Segments)
	}
	runDir := m.RunDir()
	if !strings.HasPrefix(filepath.Base(runDir), background.RunDirPrefix) {
		t.Fatalf("run dir %q lacks prefix", runDir)
	}
	if filepath.Dir(runDir) != f.cfg.Paths.TempRoot {
		t.Fatalf("run dir %q not under temp root", runDir)
	}
	last := f.runner.jobs[len(f.runner.jobs)-1]
	if last.Stage != "concat" {
		t.Fatalf("last job stage = %q", last.Stage)
	}

	m.Cleanup()
	m.Cleanup()
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Fatalf("run dir still present: %v", err)
	}
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("exported background removed by cleanup: %v", err)
	}
}

func TestPrepareFilterGraphStrategy(t *testing.T) {
	f := newFixture(t)
	m := f.manager(func(o *background.Options) { o.Strategy = config.StrategyFilterGraph })
	t.Cleanup(m.Cleanup)

	result := m.Prepare(context.Background(), 10)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Composition == nil || !strings.Contains(result.Composition.FilterComplex(), "concat=n=") {
		t.Fatalf("expected composition, got %+v", result.Composition)
	}
	if !strings.HasPrefix(result.Path, m.RunDir()) {
		t.Fatalf("path %q not in run dir", result.Path)
	}
	if len(f.runner.jobs) != 1 || f.runner.jobs[0].Stage != "filtergraph" {
		t.Fatalf("unexpected jobs %+v", f.runner.jobs)
	}
}

func TestFallbackWhenEveryListingFails(t *testing.T) {
	f := newFixture(t)
	m := f.manager(func(o *background.Options) { o.Source = failingSource{} })
	t.Cleanup(m.Cleanup)

	path := m.PrepareBackgroundVideo(context.Background(), 45)
	if path != f.cfg.Background.DefaultAsset {
		t.Fatalf("path = %q, want default", path)
	}
	if m.State() != background.StateFallback {
		t.Fatalf("state = %s", m.State())
	}
	result := m.Prepare(context.Background(), 45)
	if !errors.Is(result.Err, planner.ErrNoUsableSegments) || !result.Fallback {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCleanupAfterFailedAssembly(t *testing.T) {
	f := newFixture(t)
	runner := &brokenRunner{failStage: "concat"}
	m := f.manager(func(o *background.Options) { o.Runner = runner })

	result := m.Prepare(context.Background(), 30)
	if !result.Fallback || result.Path != f.cfg.Background.DefaultAsset {
		t.Fatalf("unexpected result %+v", result)
	}
	if !errors.Is(result.Err, services.ErrEncoding) {
		t.Fatalf("err = %v, want encoding failure", result.Err)
	}
	runDir := m.RunDir()
	if runDir == "" {
		t.Fatal("expected a run dir after planning started")
	}
	leftovers := []string{
		filepath.Join(runDir, "norm_000.mp4"),
		filepath.Join(runDir, "concat_list.txt"),
		filepath.Join(runDir, "background.mp4"),
	}
	for _, path := range leftovers {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s before cleanup: %v", filepath.Base(path), err)
		}
	}

	m.Cleanup()
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Fatalf("run dir still present after failed run: %v", err)
	}
}

func TestFallbackRecoversFromPanics(t *testing.T) {
	f := newFixture(t)
	m := f.manager(func(o *background.Options) { o.Source = failingSource{panicOnList: true} })
	t.Cleanup(m.Cleanup)
	result := m.Prepare(context.Background(), 20)
	if result.Path != f.cfg.Background.DefaultAsset || result.Err == nil {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFallbackCases(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		mutate  func(*background.Options)
		want    error
	}{
		{"zero duration", 0, nil, services.ErrValidation},
		{"unknown surah", 10, func(o *background.Options) { o.Request.Surah = 114 }, themes.ErrNoSegmentsFound},
		{"missing runner", 10, func(o *background.Options) { o.Runner = nil }, services.ErrConfiguration},
		{"all probes fail", 10, func(o *background.Options) {
			o.Probe = func(context.Context, string) (float64, error) { return 0, errors.New("moov atom not found") }
		}, planner.ErrNoUsableSegments},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.manager(tc.mutate)
			t.Cleanup(m.Cleanup)
			result := m.Prepare(context.Background(), tc.seconds)
			if result.State != background.StateFallback || result.Path != f.cfg.Background.DefaultAsset {
				t.Fatalf("unexpected result %+v", result)
			}
			if !errors.Is(result.Err, tc.want) {
				t.Fatalf("err = %v, want %v", result.Err, tc.want)
			}
		})
	}
}

func TestOpenSourceLocalBackend(t *testing.T) {
	f := newFixture(t)
	src, closeFn, err := background.OpenSource(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer closeFn()
	keys, err := src.ListAssets(context.Background(), "sea")
	if err != nil || len(keys) != 2 {
		t.Fatalf("ListAssets = %v, %v", keys, err)
	}
}
