package background

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"backdrop/internal/assembly"
	"backdrop/internal/config"
	"backdrop/internal/fileutil"
	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/planner"
	"backdrop/internal/selection"
	"backdrop/internal/services"
	"backdrop/internal/themes"
	"backdrop/internal/transcode"
)

// State is a Manager lifecycle state.
type State string

const (
	StateDisabled   State = "disabled"
	StateEnabled    State = "enabled"
	StatePlanning   State = "planning"
	StateCollecting State = "collecting"
	StateAssembling State = "assembling"
	StateReady      State = "ready"
	StateFallback   State = "fallback"
)

// RunDirPrefix starts every run directory name.
const RunDirPrefix = "backdrop_bg_"

const assembledName = "background.mp4"

// Request identifies the verse range a background is prepared for.
type Request struct {
	Surah int
	From  int
	To    int
}

// Options wires a Manager.
type Options struct {
	Enabled      bool
	DefaultAsset string
	TempRoot     string
	Themes       *themes.Map
	Request      Request
	Seed         uint64
	RotateThemes bool
	// Strategy is config.StrategyConcat or config.StrategyFilterGraph.
	Strategy string
	Profile  assembly.Profile
	Source   media.Source
	Probe    planner.ProbeFunc
	Runner   transcode.Runner
	// OutputPath, when set, receives a copy of the finished asset that
	// survives Cleanup.
	OutputPath string
	Logger     *slog.Logger
}

// Result is the outcome of Prepare.
type Result struct {
	Path     string
	State    State
	Fallback bool
	// Partial means the background is shorter than requested and must loop.
	Partial     bool
	Covered     float64
	Segments    int
	Composition *assembly.Composition
	// Err is the failure that caused a fallback, kept for diagnostics.
	Err error
}

// Manager prepares one background. It is not safe for concurrent Prepare
// calls.
type Manager struct {
	opts   Options
	logger *slog.Logger
	runID  string

	mu        sync.Mutex
	state     State
	runDir    string
	tempFiles []string
}

// New constructs a Manager in the Enabled or Disabled state.
func New(opts Options) *Manager {
	state := StateDisabled
	if opts.Enabled {
		state = StateEnabled
	}
	return &Manager{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "background"),
		runID:  uuid.NewString(),
		state:  state,
	}
}

// RunID identifies this Manager in logs.
func (m *Manager) RunID() string { return m.runID }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RunDir returns the run directory, empty until Prepare creates it.
func (m *Manager) RunDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runDir
}

// PrepareBackgroundVideo returns a playable background path for seconds of
// recitation. It never fails; errors fall back to the default asset.
func (m *Manager) PrepareBackgroundVideo(ctx context.Context, seconds float64) string {
	return m.Prepare(ctx, seconds).Path
}

// Prepare builds the background and reports how it went.
func (m *Manager) Prepare(ctx context.Context, seconds float64) (result Result) {
	if m.State() == StateDisabled {
		return Result{Path: m.opts.DefaultAsset, State: StateDisabled}
	}
	ctx = services.WithRunID(ctx, m.runID)
	logger := logging.WithContext(ctx, m.logger)

	defer func() {
		if r := recover(); r != nil {
			result = m.fallback(logger, result, services.Wrap(services.ErrData, "background", "prepare", fmt.Sprintf("panic: %v", r), nil))
		}
	}()

	result, err := m.prepare(ctx, logger, seconds)
	if err != nil {
		return m.fallback(logger, result, err)
	}
	return result
}

func (m *Manager) prepare(ctx context.Context, logger *slog.Logger, seconds float64) (Result, error) {
	var result Result
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return result, services.Wrap(services.ErrValidation, "background", "prepare", fmt.Sprintf("invalid duration %v", seconds), nil)
	}
	if m.opts.Themes == nil || m.opts.Source == nil || m.opts.Probe == nil || m.opts.Runner == nil {
		return result, services.Wrap(services.ErrConfiguration, "background", "prepare", "themes, source, probe and runner are required", nil)
	}

	ctx, logger = m.enter(ctx, StatePlanning)
	req := m.opts.Request
	segments, err := m.opts.Themes.Segments(req.Surah, req.From, req.To)
	if err != nil {
		return result, err
	}
	logger.Info("background planning started",
		logging.Int("surah", req.Surah),
		logging.String("verses", fmt.Sprintf("%d-%d", req.From, req.To)),
		logging.Int("verse_ranges", len(segments)),
		logging.Float64("target_seconds", seconds),
	)
	runDir, err := m.ensureRunDir()
	if err != nil {
		return result, err
	}
	p := planner.New(planner.Options{
		Selector: selection.New(m.opts.Seed, selection.Options{RotateThemes: m.opts.RotateThemes}),
		State:    selection.NewState(),
		Source:   media.BindRun(m.opts.Source, runDir),
		Probe:    m.opts.Probe,
		Logger:   m.opts.Logger,
	})
	plan, err := p.Plan(ctx, segments, seconds)
	if err != nil {
		return result, err
	}
	result.Covered = plan.Covered
	result.Partial = plan.CapReached
	if plan.CapReached {
		logging.WarnWithContext(logger, "background shorter than recitation", "background_partial",
			logging.Float64("covered_seconds", plan.Covered),
			logging.Float64("target_seconds", seconds),
			logging.String(logging.FieldImpact, "background must loop to cover the recitation"),
		)
	}

	ctx, logger = m.enter(ctx, StateCollecting)
	if err := m.collect(plan.Segments, runDir); err != nil {
		return result, err
	}

	ctx, logger = m.enter(ctx, StateAssembling)
	output := filepath.Join(runDir, assembledName)
	m.track(output)
	renderer := assembly.NewRenderer(m.opts.Runner, m.opts.Profile, m.opts.Logger)
	switch m.opts.Strategy {
	case config.StrategyFilterGraph:
		comp, err := assembly.BuildGraph(plan.Segments, m.opts.Profile, 0)
		if err != nil {
			return result, err
		}
		result.Composition = &comp
		assembled, err := renderer.RenderGraph(ctx, comp, output)
		if err != nil {
			return result, err
		}
		result.Segments = assembled.Clips
	default:
		assembled, err := renderer.Assemble(ctx, plan.Segments, runDir, output)
		if err != nil {
			return result, err
		}
		result.Segments = assembled.Clips
	}

	result.Path = output
	if dest := strings.TrimSpace(m.opts.OutputPath); dest != "" {
		if err := fileutil.CopyFile(output, dest); err != nil {
			return result, services.Wrap(services.ErrData, "background", "export", dest, err)
		}
		result.Path = dest
	}
	m.setState(StateReady)
	result.State = StateReady
	logger.Info("background ready",
		logging.String("path", result.Path),
		logging.Int("clips", result.Segments),
		logging.Float64("covered_seconds", result.Covered),
		logging.Bool("partial", result.Partial),
	)
	return result, nil
}

// collect verifies every planned clip is still readable and tracks the
// run-local ones for Cleanup.
func (m *Manager) collect(segments []planner.Segment, runDir string) error {
	for _, seg := range segments {
		if !fileutil.NonEmptyFile(seg.LocalPath) {
			return services.Wrap(services.ErrData, "background", "collect", seg.AssetKey+" vanished before assembly", nil)
		}
		if rel, err := filepath.Rel(runDir, seg.LocalPath); err == nil && !strings.HasPrefix(rel, "..") {
			m.track(seg.LocalPath)
		}
	}
	return nil
}

func (m *Manager) fallback(logger *slog.Logger, result Result, err error) Result {
	m.setState(StateFallback)
	logging.WarnWithContext(logger, "dynamic background failed; using default", "background_fallback",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String("default_asset", m.opts.DefaultAsset),
		logging.String(logging.FieldImpact, "default background used"),
		logging.String(logging.FieldErrorHint, "check storage access, theme metadata and ffmpeg"),
	)
	result.Path = m.opts.DefaultAsset
	result.State = StateFallback
	result.Fallback = true
	result.Composition = nil
	result.Err = err
	return result
}

func (m *Manager) ensureRunDir() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runDir != "" {
		return m.runDir, nil
	}
	root := strings.TrimSpace(m.opts.TempRoot)
	if root == "" {
		root = os.TempDir()
	}
	name := RunDirPrefix + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" + m.runID[:8]
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "background", "run dir", dir, err)
	}
	m.runDir = dir
	return dir, nil
}

// enter moves to state and tags ctx and the returned logger with it.
func (m *Manager) enter(ctx context.Context, state State) (context.Context, *slog.Logger) {
	m.setState(state)
	ctx = services.WithStage(ctx, string(state))
	return ctx, logging.WithContext(ctx, m.logger)
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) track(path string) {
	m.mu.Lock()
	m.tempFiles = append(m.tempFiles, path)
	m.mu.Unlock()
}

// Cleanup removes tracked temp files and the run directory. It is safe to
// call more than once.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	files := m.tempFiles
	dir := m.runDir
	m.tempFiles = nil
	m.mu.Unlock()

	for _, file := range files {
		_ = os.Remove(file)
	}
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Debug("run dir cleanup failed", logging.String("dir", dir), logging.Error(err))
	}
}
