package themes

import (
	"fmt"

	"backdrop/internal/services"
)

// Segment is a contiguous share of the requested verses mapped onto a
// fraction of the total video duration.
type Segment struct {
	RangeKey      string
	StartVerse    int
	EndVerse      int
	StartFraction float64
	EndFraction   float64
	Themes        []string
}

// Verses returns how many requested verses the segment covers.
func (s Segment) Verses() int {
	return s.EndVerse - s.StartVerse + 1
}

// Segments returns the ordered, contiguous time-fraction segments for a
// request. The first segment starts at 0 and the last ends at exactly 1.
func (m *Map) Segments(surah, from, to int) ([]Segment, error) {
	if from < 1 || to < from {
		return nil, services.Wrap(services.ErrValidation, "themes", "segments", fmt.Sprintf("invalid verse range %d-%d", from, to), nil)
	}

	var (
		segments []Segment
		weights  []int
		total    int
	)
	for _, r := range m.Ranges(surah) {
		lo := max(r.Start, from)
		hi := min(r.End, to)
		if lo > hi {
			continue
		}
		segments = append(segments, Segment{
			RangeKey:   r.Key,
			StartVerse: lo,
			EndVerse:   hi,
			Themes:     r.Themes,
		})
		covered := hi - lo + 1
		weights = append(weights, covered)
		total += covered
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrData, "themes", "segments", fmt.Sprintf("surah %d verses %d-%d", surah, from, to), ErrNoSegmentsFound)
	}

	cumulative := 0
	for i := range segments {
		segments[i].StartFraction = float64(cumulative) / float64(total)
		cumulative += weights[i]
		segments[i].EndFraction = float64(cumulative) / float64(total)
	}
	segments[len(segments)-1].EndFraction = 1.0
	return segments, nil
}

// RangeForPosition returns the index of the segment whose [start, end)
// interval contains fraction. The last segment also contains 1.0.
func RangeForPosition(segments []Segment, fraction float64) (int, bool) {
	if len(segments) == 0 || fraction < 0 || fraction > 1 {
		return -1, false
	}
	last := len(segments) - 1
	for i, seg := range segments {
		if fraction >= seg.StartFraction && fraction < seg.EndFraction {
			return i, true
		}
		if i == last && fraction == 1.0 {
			return i, true
		}
	}
	return -1, false
}
