package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"backdrop/internal/background"
	"backdrop/internal/staging"
	"backdrop/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Storage backend: local")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse to overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsBadStrategy(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Background.Strategy = "mosaic"
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "background.strategy")
}

func TestSegmentsTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"segments", "--surah", "1", "--from", "1", "--to", "7", "--duration", "70"}, env.configPath)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	for _, want := range []string{"1-4", "5-7", "57.1%", "40.0s", "70.0s", "Night Sky, Rain"} {
		requireContains(t, out, want)
	}
}

func TestSegmentsJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "segments", "--surah", "1", "--from", "3", "--to", "6"}, env.configPath)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	var segments []struct {
		Range         string   `json:"range"`
		StartVerse    int      `json:"start_verse"`
		EndVerse      int      `json:"end_verse"`
		StartFraction float64  `json:"start_fraction"`
		EndFraction   float64  `json:"end_fraction"`
		Themes        []string `json:"themes"`
	}
	if err := json.Unmarshal([]byte(out), &segments); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].StartVerse != 3 || segments[0].EndVerse != 4 || segments[0].EndFraction != 0.5 {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[1].StartFraction != 0.5 || segments[1].EndFraction != 1 {
		t.Fatalf("unexpected second segment %+v", segments[1])
	}
}

func TestSegmentsUnknownSurah(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"segments", "--surah", "2"}, env.configPath); err == nil {
		t.Fatal("expected error for surah without metadata")
	}
}

func TestThemesTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"themes"}, env.configPath)
	if err != nil {
		t.Fatalf("themes: %v", err)
	}
	requireContains(t, out, "Sea")
	requireContains(t, out, "2 ranges")
	requireContains(t, out, "3 themes")
}

func TestCatalogListsLocalClips(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithClips(map[string]int64{
		"sea/b.mp4":     32,
		"sea/a.mp4":     32,
		"sea/notes.txt": 8,
	}))

	out, _, err := runCLI(t, []string{"--json", "catalog", "sea"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var payload struct {
		Theme  string   `json:"theme"`
		Assets []string `json:"assets"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	want := []string{"sea/a.mp4", "sea/b.mp4"}
	if len(payload.Assets) != len(want) {
		t.Fatalf("assets = %v, want %v", payload.Assets, want)
	}
	for i := range want {
		if payload.Assets[i] != want[i] {
			t.Fatalf("assets = %v, want %v", payload.Assets, want)
		}
	}

	out, _, err = runCLI(t, []string{"catalog", "desert"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog desert: %v", err)
	}
	requireContains(t, out, "No clips found for theme desert")
}

func TestGenerateFallsBackWhenProbeFails(t *testing.T) {
	env := setupCLITestEnv(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithClips(map[string]int64{"sea/a.mp4": 32, "rain/b.mp4": 32}),
	)
	output := filepath.Join(env.baseDir, "out.mp4")

	out, _, err := runCLI(t, []string{"--json", "generate", "--surah", "1", "--from", "1", "--to", "7", "--duration", "30", "--output", output}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var payload struct {
		Path     string `json:"path"`
		State    string `json:"state"`
		Fallback bool   `json:"fallback"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !payload.Fallback || payload.State != string(background.StateFallback) {
		t.Fatalf("expected fallback, got %+v", payload)
	}
	if payload.Path != env.cfg.Background.DefaultAsset {
		t.Fatalf("path = %q, want default %q", payload.Path, env.cfg.Background.DefaultAsset)
	}
	if payload.Error == "" {
		t.Fatal("expected fallback reason")
	}

	dirs, err := staging.ListDirectories(env.cfg.Paths.TempRoot, background.RunDirPrefix)
	if err != nil {
		t.Fatalf("list run dirs: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected run directory to be cleaned up, found %d", len(dirs))
	}
}

func TestGenerateEmitsProgressOnStderr(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithClips(map[string]int64{"sea/a.mp4": 32, "rain/b.mp4": 32}))
	binDir := filepath.Join(env.baseDir, "fakebin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stubs := map[string]string{
		"ffprobe": "#!/bin/sh\n" +
			`echo '{"streams":[{"codec_type":"video","width":1920,"height":1080}],"format":{"duration":"6.0"}}'` + "\n",
		"ffmpeg": "#!/bin/sh\n" +
			"prev=; last=\n" +
			"for arg in \"$@\"; do prev=\"$last\"; last=\"$arg\"; done\n" +
			"out=\"$last\"\n" +
			"if [ \"$out\" = \"-y\" ]; then out=\"$prev\"; fi\n" +
			"printf video > \"$out\"\n" +
			"printf 'out_time_us=1000000\\nprogress=continue\\nout_time_us=6000000\\nprogress=end\\n'\n",
	}
	for name, script := range stubs {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	output := filepath.Join(env.baseDir, "out.mp4")

	out, errOut, err := runCLI(t, []string{"generate", "--surah", "1", "--from", "1", "--to", "7", "--duration", "12", "--output", output, "--emit-progress"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != output {
		t.Fatalf("first stdout line = %q, want %q\n%s", lines[0], output, out)
	}
	if strings.Contains(out, "PROGRESS") {
		t.Fatalf("progress lines leaked to stdout:\n%s", out)
	}
	requireContains(t, errOut, "PROGRESS {")
	requireContains(t, errOut, `"stage":"normalize"`)
}

func TestGenerateDisabledPrintsDefault(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Background.Enabled = false
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"generate", "--surah", "1", "--duration", "12"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	requireContains(t, out, env.cfg.Background.DefaultAsset+"\n")
	requireContains(t, out, "disabled")
}

func TestGenerateRequiresPositiveDuration(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "--surah", "1", "--duration", "-3"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
	requireContains(t, err.Error(), "--duration")
}

func TestGenerateRejectsUnknownStrategy(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "--surah", "1", "--duration", "5", "--strategy", "mosaic"}, env.configPath)
	if err == nil {
		t.Fatal("expected strategy validation error")
	}
	requireContains(t, err.Error(), "background.strategy")
}

func TestSweepDryRunThenRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	root := env.cfg.Paths.TempRoot
	stale := filepath.Join(root, background.RunDirPrefix+"1_deadbeef")
	fresh := filepath.Join(root, background.RunDirPrefix+"2_cafebabe")
	other := filepath.Join(root, "unrelated")
	old := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{stale, fresh, other} {
		testsupport.WriteFile(t, filepath.Join(dir, "clip.mp4"), 64)
	}
	for _, dir := range []string{stale, other} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"sweep", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep --dry-run: %v", err)
	}
	requireContains(t, out, "Would remove 1 run directories")
	if _, err := os.Stat(stale); err != nil {
		t.Fatalf("dry run removed %s: %v", stale, err)
	}

	out, _, err = runCLI(t, []string{"--json", "sweep"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var payload struct {
		Removed []string `json:"removed"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(payload.Removed) != 1 || payload.Removed[0] != stale {
		t.Fatalf("removed = %v, want [%s]", payload.Removed, stale)
	}
	for _, keep := range []string{fresh, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s to survive: %v", keep, err)
		}
	}
}

func TestCacheListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	var payload struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(payload.Entries) != 0 {
		t.Fatalf("expected empty cache, got %d entries", len(payload.Entries))
	}

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 0 cached clips")
}

func TestCacheDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Cache.Enabled = false
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"cache", "list"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when cache disabled")
	}
	requireContains(t, err.Error(), "disabled")
}

func TestDoctorFlagsMissingDefaultBackground(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	if err := os.Remove(env.cfg.Background.DefaultAsset); err != nil {
		t.Fatalf("remove default asset: %v", err)
	}

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	requireContains(t, out, "Default background")
	requireContains(t, out, "FAIL")
	requireContains(t, out, "FFprobe")
}

func TestDisplayThemes(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"sea"}, "Sea"},
		{[]string{"night_sky", "rain"}, "Night Sky, Rain"},
		{[]string{"desert-dunes"}, "Desert Dunes"},
		{nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := displayThemes(tt.in); got != tt.want {
				t.Fatalf("displayThemes(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatBytes(tt.in); got != tt.want {
				t.Fatalf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogsFiltersByRun(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, logFileName)
	content := "" +
		"2026-01-02T03:04:05Z INFO [run 11111111] background: planning started\n" +
		"2026-01-02T03:04:06Z INFO [run 22222222] background: planning started\n" +
		"2026-01-02T03:04:07Z WARN [run 11111111] background: theme listing failed\n"
	testsupport.WriteFile(t, logPath, 1)
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--run", "11111111-aaaa", "--lines", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "22222222") {
		t.Fatalf("unexpected line from other run:\n%s", out)
	}
	requireContains(t, out, "theme listing failed")
	requireContains(t, out, "planning started")
}
