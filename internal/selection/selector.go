package selection

import (
	"errors"
	"math/rand/v2"

	"backdrop/internal/services"
)

// ErrEmptyCandidateSet is returned when a selection is asked to choose from nothing.
var ErrEmptyCandidateSet = errors.New("empty candidate set")

// Options tunes selection behaviour.
type Options struct {
	// RotateThemes makes ordinary theme picks rotate through every eligible
	// theme of a scope before any theme repeats. When false only themes
	// marked exhausted are skipped.
	RotateThemes bool
}

// Selector is a deterministic chooser seeded by an integer.
type Selector struct {
	rng  *rand.Rand
	opts Options
}

// New returns a Selector whose sequence is fully determined by seed.
func New(seed uint64, opts Options) *Selector {
	return &Selector{
		rng:  rand.New(rand.NewPCG(seed, seed)),
		opts: opts,
	}
}

// Choice picks one candidate with equal probability.
func (s *Selector) Choice(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", services.Wrap(services.ErrData, "selection", "choice", "", ErrEmptyCandidateSet)
	}
	return candidates[s.rng.IntN(len(candidates))], nil
}

// SelectAsset picks an asset of theme that the current rotation has not shown.
// Once every asset has been shown the rotation restarts from the full catalog.
func (s *Selector) SelectAsset(theme string, available []string, state *State) (string, error) {
	if len(available) == 0 {
		return "", services.Wrap(services.ErrData, "selection", "select asset", theme, ErrEmptyCandidateSet)
	}
	eligible := remaining(state.usedAssets, theme, available)
	if len(eligible) == 0 {
		delete(state.usedAssets, theme)
		eligible = available
	}
	pick, err := s.Choice(eligible)
	if err != nil {
		return "", err
	}
	add(state.usedAssets, theme, pick)
	return pick, nil
}

// SelectTheme picks a theme for scope, skipping themes marked exhausted
// there. When every theme is exhausted the scope is cleared.
func (s *Selector) SelectTheme(themes []string, scope string, state *State) (string, error) {
	if len(themes) == 0 {
		return "", services.Wrap(services.ErrData, "selection", "select theme", scope, ErrEmptyCandidateSet)
	}
	eligible := remaining(state.exhaustedScopes, scope, themes)
	if len(eligible) == 0 {
		delete(state.exhaustedScopes, scope)
		eligible = themes
	}
	if s.opts.RotateThemes {
		fresh := remaining(state.rotatedThemes, scope, eligible)
		if len(fresh) == 0 {
			delete(state.rotatedThemes, scope)
			fresh = eligible
		}
		eligible = fresh
	}
	pick, err := s.Choice(eligible)
	if err != nil {
		return "", err
	}
	if s.opts.RotateThemes {
		add(state.rotatedThemes, scope, pick)
	}
	return pick, nil
}
