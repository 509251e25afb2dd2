package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"backdrop/internal/background"
	"backdrop/internal/staging"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove run directories left behind by interrupted generations",
		Long: `Remove run directories left behind by interrupted generations.

Only directories under paths.temp_root whose name starts with the run prefix
are considered. The default age comes from background.stale_run_max_age_hours.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = cfg.StaleRunMaxAge()
			}

			result := staging.CleanStale(cmd.Context(), cfg.Paths.TempRoot, staging.Options{
				Prefix: background.RunDirPrefix,
				MaxAge: maxAge,
				DryRun: dryRun,
			}, ctx.ensureLogger())

			if ctx.JSONMode() {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
				}
				removed := result.Removed
				if removed == nil {
					removed = []string{}
				}
				return writeJSON(cmd, map[string]any{
					"dry_run":     dryRun,
					"removed":     removed,
					"freed_bytes": result.FreedBytes,
					"errors":      errs,
				})
			}

			out := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintf(out, "No run directories older than %s\n", maxAge)
				return nil
			}
			for _, path := range result.Removed {
				fmt.Fprintf(out, "  %s\n", path)
			}
			fmt.Fprintf(out, "%s %d run directories (%s)\n", verb, len(result.Removed), formatBytes(result.FreedBytes))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Minimum age of directories to remove (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}
