package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"backdrop/internal/background"
	"backdrop/internal/config"
	"backdrop/internal/logging"
	"backdrop/internal/themes"
	"backdrop/internal/transcode"
)

type generateOptions struct {
	surah        int
	from         int
	to           int
	duration     float64
	output       string
	strategy     string
	seed         uint64
	localDir     string
	emitProgress bool
}

type generateJSON struct {
	Path           string  `json:"path"`
	State          string  `json:"state"`
	Fallback       bool    `json:"fallback"`
	Partial        bool    `json:"partial"`
	CoveredSeconds float64 `json:"covered_seconds"`
	TargetSeconds  float64 `json:"target_seconds"`
	Segments       int     `json:"segments"`
	RunID          string  `json:"run_id"`
	FilterComplex  string  `json:"filter_complex,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Prepare a background video for a verse range",
		Long: `Prepare a background video for a verse range.

The command always prints a playable path. When dynamic selection fails the
configured default background is returned instead and the reason is logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyGenerateOverrides(cmd, base, opts)
			if err != nil {
				return err
			}
			if opts.duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			return runGenerate(cmd, ctx, cfg, opts)
		},
	}

	cmd.Flags().IntVar(&opts.surah, "surah", 0, "Surah number")
	cmd.Flags().IntVar(&opts.from, "from", 1, "First verse")
	cmd.Flags().IntVar(&opts.to, "to", 0, "Last verse (defaults to --from)")
	cmd.Flags().Float64Var(&opts.duration, "duration", 0, "Recitation length in seconds")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Where to write the background (default background_<surah>_<from>-<to>.mp4)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Assembly strategy: concat or filtergraph")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Selection seed (overrides background.seed)")
	cmd.Flags().StringVar(&opts.localDir, "local-dir", "", "Read clips from this directory instead of the bucket")
	cmd.Flags().BoolVar(&opts.emitProgress, "emit-progress", false, "Print PROGRESS {json} lines to stderr")
	_ = cmd.MarkFlagRequired("surah")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

// applyGenerateOverrides returns a copy of base with command-line overrides
// applied and revalidated.
func applyGenerateOverrides(cmd *cobra.Command, base *config.Config, opts generateOptions) (*config.Config, error) {
	cfg := *base
	if cmd.Flags().Changed("strategy") {
		cfg.Background.Strategy = strings.ToLower(strings.TrimSpace(opts.strategy))
	}
	if cmd.Flags().Changed("seed") {
		cfg.Background.Seed = opts.seed
	}
	if dir := strings.TrimSpace(opts.localDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve --local-dir: %w", err)
		}
		cfg.Storage.Backend = config.BackendLocal
		cfg.Storage.LocalDir = expanded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runGenerate(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, opts generateOptions) error {
	logger := ctx.ensureLogger()
	runCtx := cmd.Context()

	req := background.Request{Surah: opts.surah, From: opts.from, To: opts.to}
	if req.To == 0 {
		req.To = req.From
	}
	output := strings.TrimSpace(opts.output)
	if output == "" {
		output = fmt.Sprintf("background_%d_%d-%d.mp4", req.Surah, req.From, req.To)
	}

	// Setup failures are not fatal: the manager falls back to the default
	// background when a dependency is missing.
	env := background.Environment{OutputPath: output, Logger: logger}
	if cfg.Background.Enabled {
		env.Themes = loadThemes(cfg, logger)
		source, closeSource, err := background.OpenSource(runCtx, cfg, logger)
		defer func() {
			if err := closeSource(); err != nil {
				logger.Debug("source close failed", logging.Error(err))
			}
		}()
		if err != nil {
			logging.WarnWithContext(logger, "clip source unavailable", "source_open_failed",
				logging.Error(err),
				logging.String("backend", cfg.Storage.Backend),
				logging.String(logging.FieldImpact, "default background used"),
				logging.String(logging.FieldErrorHint, "check [storage] settings and credentials"),
			)
		} else {
			env.Source = source
		}
	}

	var bar *jobBar
	runnerOpts := transcode.Options{
		Binary:         cfg.FFmpegBinary(),
		Logger:         logger,
		ProgressBucket: cfg.Logging.ProgressBucket,
	}
	switch {
	case opts.emitProgress:
		runnerOpts.Emit = cmd.ErrOrStderr()
	case !ctx.JSONMode() && isTerminal(cmd.ErrOrStderr()):
		bar = newJobBar(cmd.ErrOrStderr())
		runnerOpts.OnProgress = bar.update
	}
	env.Runner = transcode.New(runnerOpts)

	mgr := background.NewFromConfig(cfg, req, env)
	defer mgr.Cleanup()

	result := mgr.Prepare(runCtx, opts.duration)
	if bar != nil {
		bar.finish()
	}
	if err := runCtx.Err(); err != nil {
		return err
	}

	if ctx.JSONMode() {
		payload := generateJSON{
			Path:           result.Path,
			State:          string(result.State),
			Fallback:       result.Fallback,
			Partial:        result.Partial,
			CoveredSeconds: result.Covered,
			TargetSeconds:  opts.duration,
			Segments:       result.Segments,
			RunID:          mgr.RunID(),
		}
		if result.Composition != nil {
			payload.FilterComplex = result.Composition.FilterComplex()
		}
		if result.Err != nil {
			payload.Error = result.Err.Error()
		}
		return writeJSON(cmd, payload)
	}
	printGenerateResult(cmd.OutOrStdout(), result)
	return nil
}

func loadThemes(cfg *config.Config, logger *slog.Logger) *themes.Map {
	themeMap, err := themes.Load(cfg.Background.ThemeMetadataPath)
	if err != nil {
		logging.WarnWithContext(logger, "theme metadata unavailable", "theme_metadata_failed",
			logging.Error(err),
			logging.String("path", cfg.Background.ThemeMetadataPath),
			logging.String(logging.FieldImpact, "default background used"),
			logging.String(logging.FieldErrorHint, "check background.theme_metadata_path"),
		)
		return nil
	}
	return themeMap
}

// printGenerateResult writes the path on the first line so scripts can
// read it with head -n1.
func printGenerateResult(out io.Writer, result background.Result) {
	fmt.Fprintln(out, result.Path)
	switch {
	case result.Fallback:
		fmt.Fprintf(out, "Used default background (%s)\n", result.State)
	case result.State == background.StateDisabled:
		fmt.Fprintln(out, "Dynamic backgrounds disabled; used default background")
	case result.Partial:
		fmt.Fprintf(out, "Partial background: %s covered from %d clips; loop it to fill the recitation\n",
			formatSeconds(result.Covered), result.Segments)
	default:
		fmt.Fprintf(out, "Assembled %d clips covering %s\n", result.Segments, formatSeconds(result.Covered))
	}
}
