package themes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"backdrop/internal/services"
)

// ErrNoSegmentsFound reports that no metadata range intersects a request.
var ErrNoSegmentsFound = errors.New("no verse range segments found")

// Range is one verse sub-range of a surah and the themes valid for it.
type Range struct {
	Key    string
	Start  int
	End    int
	Themes []string
}

// Map is the immutable surah → verse range → themes lookup.
type Map struct {
	surahs map[int][]Range
}

// Load reads theme metadata from a JSON file.
func Load(path string) (*Map, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "themes", "load", "open theme metadata", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes and validates theme metadata. Malformed range keys, empty
// theme lists, and non-numeric surah keys are configuration errors.
func Parse(r io.Reader) (*Map, error) {
	var raw map[string]map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "themes", "parse", "decode theme metadata", err)
	}

	m := &Map{surahs: make(map[int][]Range, len(raw))}
	for surahKey, ranges := range raw {
		surah, err := strconv.Atoi(strings.TrimSpace(surahKey))
		if err != nil || surah <= 0 {
			return nil, services.Wrap(services.ErrConfiguration, "themes", "parse", fmt.Sprintf("invalid surah key %q", surahKey), nil)
		}
		parsed := make([]Range, 0, len(ranges))
		for key, themes := range ranges {
			start, end, err := parseRangeKey(key)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "themes", "parse", fmt.Sprintf("surah %d", surah), err)
			}
			cleaned := cleanThemes(themes)
			if len(cleaned) == 0 {
				return nil, services.Wrap(services.ErrConfiguration, "themes", "parse", fmt.Sprintf("surah %d range %q has no themes", surah, key), nil)
			}
			parsed = append(parsed, Range{Key: key, Start: start, End: end, Themes: cleaned})
		}
		sort.Slice(parsed, func(i, j int) bool {
			if parsed[i].Start != parsed[j].Start {
				return parsed[i].Start < parsed[j].Start
			}
			return parsed[i].End < parsed[j].End
		})
		m.surahs[surah] = parsed
	}
	return m, nil
}

// Ranges returns the ordered verse ranges for a surah. The slice is a copy.
func (m *Map) Ranges(surah int) []Range {
	if m == nil {
		return nil
	}
	src := m.surahs[surah]
	out := make([]Range, len(src))
	for i, r := range src {
		r.Themes = append([]string(nil), r.Themes...)
		out[i] = r
	}
	return out
}

// Surahs returns the surah numbers present in the metadata, ascending.
func (m *Map) Surahs() []int {
	if m == nil {
		return nil
	}
	out := make([]int, 0, len(m.surahs))
	for surah := range m.surahs {
		out = append(out, surah)
	}
	sort.Ints(out)
	return out
}

// Themes returns every distinct theme name referenced by the metadata, sorted.
func (m *Map) Themes() []string {
	if m == nil {
		return nil
	}
	seen := map[string]struct{}{}
	for _, ranges := range m.surahs {
		for _, r := range ranges {
			for _, theme := range r.Themes {
				seen[theme] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for theme := range seen {
		out = append(out, theme)
	}
	sort.Strings(out)
	return out
}

func parseRangeKey(key string) (int, int, error) {
	trimmed := strings.TrimSpace(key)
	startText, endText, found := strings.Cut(trimmed, "-")
	if !found {
		endText = startText
	}
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid verse range %q", key)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid verse range %q", key)
	}
	if start <= 0 || end < start {
		return 0, 0, fmt.Errorf("invalid verse range %q", key)
	}
	return start, end, nil
}

func cleanThemes(themes []string) []string {
	out := make([]string, 0, len(themes))
	seen := make(map[string]struct{}, len(themes))
	for _, theme := range themes {
		theme = strings.TrimSpace(theme)
		if theme == "" {
			continue
		}
		if _, ok := seen[theme]; ok {
			continue
		}
		seen[theme] = struct{}{}
		out = append(out, theme)
	}
	return out
}
