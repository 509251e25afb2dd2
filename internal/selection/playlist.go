package selection

import (
	"context"
	"fmt"

	"backdrop/internal/services"
	"backdrop/internal/themes"
)

// PlaylistEntry is one (theme, asset) pick for a verse range.
type PlaylistEntry struct {
	Theme    string
	AssetKey string
}

// CatalogFunc returns the asset keys of a theme. An error or an empty result
// marks the theme exhausted for the current range.
type CatalogFunc func(ctx context.Context, theme string) ([]string, error)

// Next picks the next entry for segment. Themes whose catalog is empty or
// fails to load are marked exhausted and another theme is tried, at most once
// per theme. The last catalog error is returned when nothing is usable.
func (s *Selector) Next(ctx context.Context, segment themes.Segment, catalog CatalogFunc, state *State) (PlaylistEntry, error) {
	var lastErr error
	for attempt := 0; attempt < len(segment.Themes); attempt++ {
		if err := ctx.Err(); err != nil {
			return PlaylistEntry{}, err
		}
		theme, err := s.SelectTheme(segment.Themes, segment.RangeKey, state)
		if err != nil {
			return PlaylistEntry{}, err
		}
		assets, err := catalog(ctx, theme)
		if err != nil || len(assets) == 0 {
			state.MarkExhausted(segment.RangeKey, theme)
			if err != nil {
				lastErr = err
			} else {
				lastErr = services.Wrap(services.ErrData, "selection", "next", fmt.Sprintf("theme %q has no assets", theme), ErrEmptyCandidateSet)
			}
			continue
		}
		key, err := s.SelectAsset(theme, assets, state)
		if err != nil {
			return PlaylistEntry{}, err
		}
		return PlaylistEntry{Theme: theme, AssetKey: key}, nil
	}
	if lastErr == nil {
		lastErr = services.Wrap(services.ErrData, "selection", "next", segment.RangeKey, ErrEmptyCandidateSet)
	}
	return PlaylistEntry{}, lastErr
}
