package selection_test

import (
	"errors"
	"slices"
	"testing"

	"backdrop/internal/selection"
)

func pickAssets(t *testing.T, sel *selection.Selector, state *selection.State, theme string, catalog []string, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		pick, err := sel.SelectAsset(theme, catalog, state)
		if err != nil {
			t.Fatalf("SelectAsset returned error: %v", err)
		}
		out = append(out, pick)
	}
	return out
}

func TestScenarioSeed99(t *testing.T) {
	catalogs := map[string][]string{"A": {"a1", "a2"}, "B": {"b1"}}

	run := func() []string {
		sel := selection.New(99, selection.Options{RotateThemes: true})
		return pickAssets(t, sel, selection.NewState(), "A", catalogs["A"], 4)
	}

	first := run()
	for _, rotation := range [][]string{first[:2], first[2:]} {
		sorted := slices.Clone(rotation)
		slices.Sort(sorted)
		if !slices.Equal(sorted, []string{"a1", "a2"}) {
			t.Fatalf("rotation %v is not a permutation of a1,a2 (picks %v)", rotation, first)
		}
	}
	if second := run(); !slices.Equal(first, second) {
		t.Fatalf("same seed produced %v then %v", first, second)
	}
}

func TestExhaustionBeforeRepeat(t *testing.T) {
	catalog := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7"}
	for seed := uint64(0); seed < 20; seed++ {
		sel := selection.New(seed, selection.Options{})
		state := selection.NewState()
		picks := pickAssets(t, sel, state, "sea", catalog, len(catalog)*3)
		for r := 0; r < 3; r++ {
			rotation := slices.Clone(picks[r*len(catalog) : (r+1)*len(catalog)])
			slices.Sort(rotation)
			if !slices.Equal(rotation, catalog) {
				t.Fatalf("seed %d rotation %d = %v, want each asset once", seed, r, rotation)
			}
		}
	}
}

func TestThemesTrackAssetsIndependently(t *testing.T) {
	sel := selection.New(5, selection.Options{})
	state := selection.NewState()
	if _, err := sel.SelectAsset("A", []string{"a1", "a2"}, state); err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}
	pick, err := sel.SelectAsset("B", []string{"b1"}, state)
	if err != nil || pick != "b1" {
		t.Fatalf("SelectAsset(B) = %q, %v", pick, err)
	}
	if state.UsedCount("A") != 1 || state.UsedCount("B") != 1 {
		t.Fatalf("unexpected used counts A=%d B=%d", state.UsedCount("A"), state.UsedCount("B"))
	}
}

func TestDeterministicAcrossSeeds(t *testing.T) {
	catalog := []string{"x1", "x2", "x3", "x4", "x5"}
	a := pickAssets(t, selection.New(1, selection.Options{}), selection.NewState(), "t", catalog, 15)
	b := pickAssets(t, selection.New(1, selection.Options{}), selection.NewState(), "t", catalog, 15)
	if !slices.Equal(a, b) {
		t.Fatalf("same seed diverged: %v vs %v", a, b)
	}
}

func TestEmptyCandidates(t *testing.T) {
	sel := selection.New(1, selection.Options{})
	state := selection.NewState()
	if _, err := sel.SelectAsset("A", nil, state); !errors.Is(err, selection.ErrEmptyCandidateSet) {
		t.Fatalf("SelectAsset(nil) error = %v", err)
	}
	if _, err := sel.SelectTheme(nil, "1-7", state); !errors.Is(err, selection.ErrEmptyCandidateSet) {
		t.Fatalf("SelectTheme(nil) error = %v", err)
	}
	if _, err := sel.Choice(nil); !errors.Is(err, selection.ErrEmptyCandidateSet) {
		t.Fatalf("Choice(nil) error = %v", err)
	}
}

func TestSelectThemeSkipsExhausted(t *testing.T) {
	sel := selection.New(3, selection.Options{})
	state := selection.NewState()
	themes := []string{"sea", "sky", "forest"}
	state.MarkExhausted("1-7", "sea")
	state.MarkExhausted("1-7", "sky")

	for i := 0; i < 10; i++ {
		pick, err := sel.SelectTheme(themes, "1-7", state)
		if err != nil {
			t.Fatalf("SelectTheme: %v", err)
		}
		if pick != "forest" {
			t.Fatalf("pick %d = %q, want forest", i, pick)
		}
	}

	// other scopes are unaffected
	if state.Exhausted("8-10", "sea") {
		t.Fatal("exhaustion leaked across scopes")
	}
}

func TestSelectThemeResetsWhenAllExhausted(t *testing.T) {
	sel := selection.New(3, selection.Options{})
	state := selection.NewState()
	themes := []string{"sea", "sky"}
	state.MarkExhausted("s", "sea")
	state.MarkExhausted("s", "sky")

	pick, err := sel.SelectTheme(themes, "s", state)
	if err != nil {
		t.Fatalf("SelectTheme: %v", err)
	}
	if !slices.Contains(themes, pick) {
		t.Fatalf("unexpected pick %q", pick)
	}
	if state.Exhausted("s", "sea") || state.Exhausted("s", "sky") {
		t.Fatal("expected scope to be cleared after full exhaustion")
	}
}

func TestSelectThemeRotation(t *testing.T) {
	themes := []string{"sea", "sky", "forest", "rain"}
	sel := selection.New(11, selection.Options{RotateThemes: true})
	state := selection.NewState()

	var picks []string
	for i := 0; i < len(themes)*2; i++ {
		pick, err := sel.SelectTheme(themes, "1-4", state)
		if err != nil {
			t.Fatalf("SelectTheme: %v", err)
		}
		picks = append(picks, pick)
	}
	for r := 0; r < 2; r++ {
		rotation := slices.Clone(picks[r*len(themes) : (r+1)*len(themes)])
		slices.Sort(rotation)
		want := slices.Clone(themes)
		slices.Sort(want)
		if !slices.Equal(rotation, want) {
			t.Fatalf("rotation %d = %v, want every theme once", r, rotation)
		}
	}
}
