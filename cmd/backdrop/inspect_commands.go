package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"backdrop/internal/background"
	"backdrop/internal/themes"
)

var themeTitle = cases.Title(language.Und)

// displayThemes title-cases theme folder names for tables, e.g.
// "night_sky" becomes "Night Sky".
func displayThemes(names []string) string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = themeTitle.String(strings.NewReplacer("_", " ", "-", " ").Replace(name))
	}
	return strings.Join(out, ", ")
}

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	var surah, from, to int
	var duration float64

	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Show how a verse range divides the background timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			themeMap, err := themes.Load(cfg.Background.ThemeMetadataPath)
			if err != nil {
				return err
			}
			if to == 0 {
				to = from
			}
			segments, err := themeMap.Segments(surah, from, to)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				type segmentJSON struct {
					Range         string   `json:"range"`
					StartVerse    int      `json:"start_verse"`
					EndVerse      int      `json:"end_verse"`
					StartFraction float64  `json:"start_fraction"`
					EndFraction   float64  `json:"end_fraction"`
					StartSeconds  *float64 `json:"start_seconds,omitempty"`
					EndSeconds    *float64 `json:"end_seconds,omitempty"`
					Themes        []string `json:"themes"`
				}
				payload := make([]segmentJSON, 0, len(segments))
				for _, seg := range segments {
					item := segmentJSON{
						Range:         seg.RangeKey,
						StartVerse:    seg.StartVerse,
						EndVerse:      seg.EndVerse,
						StartFraction: seg.StartFraction,
						EndFraction:   seg.EndFraction,
						Themes:        seg.Themes,
					}
					if duration > 0 {
						start, end := seg.StartFraction*duration, seg.EndFraction*duration
						item.StartSeconds, item.EndSeconds = &start, &end
					}
					payload = append(payload, item)
				}
				return writeJSON(cmd, payload)
			}

			columns := []column{left("Range"), left("Verses"), right("Share")}
			if duration > 0 {
				columns = append(columns, right("Start"), right("End"))
			}
			columns = append(columns, left("Themes"))

			rows := make([][]string, 0, len(segments))
			for _, seg := range segments {
				row := []string{
					seg.RangeKey,
					fmt.Sprintf("%d-%d", seg.StartVerse, seg.EndVerse),
					fmt.Sprintf("%.1f%%", (seg.EndFraction-seg.StartFraction)*100),
				}
				if duration > 0 {
					row = append(row,
						formatSeconds(seg.StartFraction*duration),
						formatSeconds(seg.EndFraction*duration),
					)
				}
				rows = append(rows, append(row, displayThemes(seg.Themes)))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&surah, "surah", 0, "Surah number")
	cmd.Flags().IntVar(&from, "from", 1, "First verse")
	cmd.Flags().IntVar(&to, "to", 0, "Last verse (defaults to --from)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Recitation length in seconds, adds timestamps")
	_ = cmd.MarkFlagRequired("surah")
	return cmd
}

func newThemesCommand(ctx *commandContext) *cobra.Command {
	var surah int

	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List verse ranges and their themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			themeMap, err := themes.Load(cfg.Background.ThemeMetadataPath)
			if err != nil {
				return err
			}

			surahs := themeMap.Surahs()
			if surah > 0 {
				surahs = []int{surah}
			}

			if ctx.JSONMode() {
				type rangeJSON struct {
					Surah  int      `json:"surah"`
					Range  string   `json:"range"`
					Themes []string `json:"themes"`
				}
				payload := []rangeJSON{}
				for _, s := range surahs {
					for _, r := range themeMap.Ranges(s) {
						payload = append(payload, rangeJSON{Surah: s, Range: r.Key, Themes: r.Themes})
					}
				}
				return writeJSON(cmd, payload)
			}

			var rows [][]string
			for _, s := range surahs {
				for _, r := range themeMap.Ranges(s) {
					rows = append(rows, []string{strconv.Itoa(s), r.Key, displayThemes(r.Themes)})
				}
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No verse ranges found")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]column{right("Surah"), left("Range"), left("Themes")},
				rows,
				"", fmt.Sprintf("%d ranges", len(rows)), fmt.Sprintf("%d themes", len(themeMap.Themes())),
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&surah, "surah", 0, "Only show this surah")
	return cmd
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog <theme>",
		Short: "List the clips available for a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()
			source, closeSource, err := background.OpenSource(cmd.Context(), cfg, logger)
			defer func() { _ = closeSource() }()
			if err != nil {
				return fmt.Errorf("open clip source: %w", err)
			}

			theme := strings.TrimSpace(args[0])
			keys, err := source.ListAssets(cmd.Context(), theme)
			if err != nil {
				return fmt.Errorf("list %s: %w", theme, err)
			}

			if ctx.JSONMode() {
				if keys == nil {
					keys = []string{}
				}
				return writeJSON(cmd, map[string]any{
					"theme":   theme,
					"backend": cfg.Storage.Backend,
					"assets":  keys,
				})
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintf(out, "No clips found for theme %s\n", theme)
				return nil
			}
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				rows = append(rows, []string{key})
			}
			fmt.Fprint(out, renderTable([]column{left("Asset")}, rows, fmt.Sprintf("%d clips", len(keys))))
			return nil
		},
	}
}
