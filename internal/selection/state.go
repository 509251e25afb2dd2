package selection

// State is the per-run selection bookkeeping. It is never shared between
// runs; each Manager creates its own.
type State struct {
	usedAssets      map[string]map[string]struct{}
	exhaustedScopes map[string]map[string]struct{}
	rotatedThemes   map[string]map[string]struct{}
}

// NewState returns empty selection bookkeeping.
func NewState() *State {
	return &State{
		usedAssets:      make(map[string]map[string]struct{}),
		exhaustedScopes: make(map[string]map[string]struct{}),
		rotatedThemes:   make(map[string]map[string]struct{}),
	}
}

// MarkExhausted records that theme has no usable assets within scope.
func (s *State) MarkExhausted(scope, theme string) {
	add(s.exhaustedScopes, scope, theme)
}

// Exhausted reports whether theme was marked exhausted within scope.
func (s *State) Exhausted(scope, theme string) bool {
	return contains(s.exhaustedScopes, scope, theme)
}

// UsedCount returns how many assets of theme the current rotation has shown.
func (s *State) UsedCount(theme string) int {
	return len(s.usedAssets[theme])
}

func add(sets map[string]map[string]struct{}, key, member string) {
	set, ok := sets[key]
	if !ok {
		set = make(map[string]struct{})
		sets[key] = set
	}
	set[member] = struct{}{}
}

func contains(sets map[string]map[string]struct{}, key, member string) bool {
	_, ok := sets[key][member]
	return ok
}

// remaining returns candidates not in sets[key], preserving order.
func remaining(sets map[string]map[string]struct{}, key string, candidates []string) []string {
	used := sets[key]
	if len(used) == 0 {
		return candidates
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := used[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
