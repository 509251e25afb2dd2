package themes_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backdrop/internal/services"
	"backdrop/internal/themes"
)

const sampleMetadata = `{
  "1": {"1-4": ["mountains", "sky"], "5-7": ["sea"]},
  "2": {"1-5": ["desert"], "6-20": ["forest", "rain"], "21": ["stars"]},
  "112": {"1-4": [" light ", "light", ""]}
}`

func mustParse(t *testing.T, raw string) *themes.Map {
	t.Helper()
	m, err := themes.Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return m
}

func TestParseOrdersRangesAndCleansThemes(t *testing.T) {
	m := mustParse(t, sampleMetadata)

	ranges := m.Ranges(2)
	if len(ranges) != 3 {
		t.Fatalf("expected 3 ranges for surah 2, got %d", len(ranges))
	}
	wantKeys := []string{"1-5", "6-20", "21"}
	for i, r := range ranges {
		if r.Key != wantKeys[i] {
			t.Fatalf("range %d key = %q, want %q", i, r.Key, wantKeys[i])
		}
	}
	if ranges[2].Start != 21 || ranges[2].End != 21 {
		t.Fatalf("single verse key parsed as %d-%d", ranges[2].Start, ranges[2].End)
	}

	light := m.Ranges(112)[0].Themes
	if len(light) != 1 || light[0] != "light" {
		t.Fatalf("expected deduplicated trimmed themes, got %v", light)
	}

	if got := m.Surahs(); len(got) != 3 || got[0] != 1 || got[2] != 112 {
		t.Fatalf("unexpected surahs %v", got)
	}
	if got := m.Themes(); len(got) != 8 {
		t.Fatalf("expected 8 distinct themes, got %v", got)
	}
}

func TestRangesReturnsCopy(t *testing.T) {
	m := mustParse(t, sampleMetadata)
	first := m.Ranges(1)
	first[0].Themes[0] = "mutated"
	if again := m.Ranges(1); again[0].Themes[0] != "mountains" {
		t.Fatalf("metadata mutated through returned slice: %v", again[0].Themes)
	}
}

func TestParseRejectsMalformedMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"bad surah", `{"one": {"1-2": ["sea"]}}`},
		{"bad range", `{"1": {"a-b": ["sea"]}}`},
		{"reversed range", `{"1": {"7-5": ["sea"]}}`},
		{"zero verse", `{"1": {"0-3": ["sea"]}}`},
		{"empty themes", `{"1": {"1-3": []}}`},
		{"blank themes", `{"1": {"1-3": ["  "]}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := themes.Parse(strings.NewReader(tc.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadMissingFileIsConfigurationError(t *testing.T) {
	_, err := themes.Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surah-themes.json")
	if err := os.WriteFile(path, []byte(sampleMetadata), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	m, err := themes.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(m.Ranges(1)) != 2 {
		t.Fatalf("expected 2 ranges for surah 1")
	}
}
