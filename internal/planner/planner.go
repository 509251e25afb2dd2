package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/selection"
	"backdrop/internal/services"
	"backdrop/internal/themes"
)

// ErrNoUsableSegments is returned when the walk produced nothing.
var ErrNoUsableSegments = errors.New("no usable segments")

const (
	// minTrimSeconds is the smallest remainder of a verse range worth cutting
	// a clip for; shorter remainders let the clip run into the next range.
	minTrimSeconds = 0.5
	minIterations  = 500
	// coverEpsilon absorbs float drift when the last clip lands on the target.
	coverEpsilon = 1e-6
)

// ProbeFunc returns the playable duration of a local clip in seconds.
type ProbeFunc func(ctx context.Context, path string) (float64, error)

// Segment is one planned clip.
type Segment struct {
	LocalPath       string
	Theme           string
	AssetKey        string
	RangeKey        string
	SourceDuration  float64
	TrimmedDuration float64
	NeedsTrim       bool
}

// Plan is the outcome of a walk.
type Plan struct {
	Segments []Segment
	Covered  float64
	Target   float64
	// CapReached means the walk stopped short of the target; the caller must
	// loop the assembled output to fill the remainder.
	CapReached bool
}

// Options wires a Planner.
type Options struct {
	Selector *selection.Selector
	State    *selection.State
	Source   media.Source
	Probe    ProbeFunc
	Logger   *slog.Logger
}

// Planner plans one run. It is not safe for concurrent use.
type Planner struct {
	selector *selection.Selector
	state    *selection.State
	source   media.Source
	probe    ProbeFunc
	logger   *slog.Logger

	catalogs     map[string][]string
	deadThemes   map[string]struct{}
	failedAssets map[string]struct{}
}

// New constructs a Planner.
func New(opts Options) *Planner {
	state := opts.State
	if state == nil {
		state = selection.NewState()
	}
	return &Planner{
		selector:     opts.Selector,
		state:        state,
		source:       opts.Source,
		probe:        opts.Probe,
		logger:       logging.NewComponentLogger(opts.Logger, "planner"),
		catalogs:     make(map[string][]string),
		deadThemes:   make(map[string]struct{}),
		failedAssets: make(map[string]struct{}),
	}
}

// IterationCap returns the maximum number of planning steps for target.
func IterationCap(target float64) int {
	return int(math.Max(minIterations, target/5))
}

// Plan walks the timeline until target seconds are covered.
func (p *Planner) Plan(ctx context.Context, segments []themes.Segment, target float64) (Plan, error) {
	if p.selector == nil || p.source == nil || p.probe == nil {
		return Plan{}, services.Wrap(services.ErrConfiguration, "planner", "plan", "selector, source and probe are required", nil)
	}
	if len(segments) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "planner", "plan", "no verse-range segments", nil)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "planner", "plan", fmt.Sprintf("invalid target duration %v", target), nil)
	}

	logger := logging.WithContext(ctx, p.logger)
	plan := Plan{Target: target}
	limit := IterationCap(target)
	active := -1
	t := 0.0

	for iteration := 0; target-t > coverEpsilon; iteration++ {
		if iteration >= limit {
			plan.CapReached = true
			logging.WarnWithContext(logger, "planning iteration cap reached", "plan_cap_reached",
				logging.Int("iterations", iteration),
				logging.Float64("covered_seconds", t),
				logging.Float64("target_seconds", target),
				logging.String(logging.FieldImpact, "background will loop to fill the remainder"),
			)
			break
		}
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}

		// Positions within coverEpsilon of a range end belong to the next range.
		idx, ok := themes.RangeForPosition(segments, math.Min((t+coverEpsilon)/target, 1))
		if !ok {
			idx = len(segments) - 1
		}
		seg := segments[idx]
		if idx != active {
			logger.Info("verse range transition",
				logging.String("range", seg.RangeKey),
				logging.Float64("position_seconds", t),
				logging.Any("themes", seg.Themes),
			)
			active = idx
		}
		if p.allDead(seg.Themes) {
			plan.CapReached = true
			logging.WarnWithContext(logger, "no usable themes left for verse range", "plan_themes_exhausted",
				logging.String("range", seg.RangeKey),
				logging.Float64("covered_seconds", t),
				logging.String(logging.FieldImpact, "background will loop to fill the remainder"),
			)
			break
		}

		entry, err := p.selector.Next(ctx, seg, p.catalog, p.state)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Plan{}, ctxErr
			}
			logger.Debug("no playlist entry for range", logging.String("range", seg.RangeKey), logging.Error(err))
			continue
		}

		path, err := p.source.Fetch(ctx, entry.AssetKey)
		if err != nil {
			p.skip(logger, entry, "fetch", err)
			continue
		}
		duration, err := p.probe(ctx, path)
		if err == nil && (math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0) {
			err = services.Wrap(services.ErrData, "planner", "probe", fmt.Sprintf("unusable duration %v", duration), nil)
		}
		if err != nil {
			p.skip(logger, entry, "probe", err)
			continue
		}

		rangeEnd := seg.EndFraction * target
		trimmed := trimDuration(t, duration, rangeEnd, target)
		planned := Segment{
			LocalPath:       path,
			Theme:           entry.Theme,
			AssetKey:        entry.AssetKey,
			RangeKey:        seg.RangeKey,
			SourceDuration:  duration,
			TrimmedDuration: trimmed,
			NeedsTrim:       trimmed < duration,
		}
		plan.Segments = append(plan.Segments, planned)
		logger.Debug("segment planned",
			logging.String("range", seg.RangeKey),
			logging.String("theme", entry.Theme),
			logging.String("asset_key", entry.AssetKey),
			logging.Float64("start_seconds", t),
			logging.Float64("source_seconds", duration),
			logging.Float64("trimmed_seconds", trimmed),
		)
		t += trimmed
		if math.Abs(rangeEnd-t) <= coverEpsilon {
			t = rangeEnd
		}
	}

	plan.Covered = math.Min(t, target)
	if target-t <= coverEpsilon {
		plan.Covered = target
	}
	if len(plan.Segments) == 0 {
		return plan, services.Wrap(services.ErrData, "planner", "plan", "", ErrNoUsableSegments)
	}
	logger.Info("background plan ready",
		logging.Int("segments", len(plan.Segments)),
		logging.Float64("covered_seconds", plan.Covered),
		logging.Float64("target_seconds", target),
		logging.Bool("cap_reached", plan.CapReached),
	)
	return plan, nil
}

// trimDuration cuts a clip starting at t to the end of its verse range when
// it would cross it by more than minTrimSeconds, then to the overall target.
func trimDuration(t, duration, rangeEnd, target float64) float64 {
	trimmed := duration
	if t+duration > rangeEnd && rangeEnd-t > minTrimSeconds {
		trimmed = rangeEnd - t
	}
	if t+trimmed > target {
		trimmed = target - t
	}
	return trimmed
}

// catalog serves the selector with memoized listings. Failing or empty
// themes are retired for the run; assets that failed to fetch or probe are
// hidden so the selector does not pick them again.
func (p *Planner) catalog(ctx context.Context, theme string) ([]string, error) {
	if _, dead := p.deadThemes[theme]; dead {
		return nil, services.Wrap(services.ErrData, "planner", "catalog", fmt.Sprintf("theme %q retired", theme), nil)
	}
	keys, ok := p.catalogs[theme]
	if !ok {
		listed, err := p.source.ListAssets(ctx, theme)
		if err != nil {
			p.deadThemes[theme] = struct{}{}
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "theme listing failed", "theme_listing_failed",
				logging.String("theme", theme),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldImpact, "theme skipped for this run"),
			)
			return nil, err
		}
		keys = listed
		p.catalogs[theme] = keys
	}
	usable := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, failed := p.failedAssets[key]; !failed {
			usable = append(usable, key)
		}
	}
	if len(usable) == 0 {
		p.deadThemes[theme] = struct{}{}
	}
	return usable, nil
}

func (p *Planner) skip(logger *slog.Logger, entry selection.PlaylistEntry, step string, err error) {
	p.failedAssets[entry.AssetKey] = struct{}{}
	logging.WarnWithContext(logger, "background asset skipped", "asset_"+step+"_failed",
		logging.String("theme", entry.Theme),
		logging.String("asset_key", entry.AssetKey),
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldImpact, "iteration skipped"),
	)
}

func (p *Planner) allDead(themeList []string) bool {
	for _, theme := range themeList {
		if _, dead := p.deadThemes[theme]; !dead {
			return false
		}
	}
	return true
}
