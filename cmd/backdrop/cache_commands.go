package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"backdrop/internal/assetcache"
	"backdrop/internal/background"
	"backdrop/internal/config"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the downloaded clip cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

// withAssetCache opens the clip cache for the duration of fn.
func (c *commandContext) withAssetCache(cmd *cobra.Command, fn func(*config.Config, *assetcache.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		return fmt.Errorf("clip cache is disabled (cache.enabled = false)")
	}
	store, err := background.OpenAssetCache(cmd.Context(), cfg, c.ensureLogger())
	if err != nil {
		return fmt.Errorf("open clip cache: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached clips, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAssetCache(cmd, func(cfg *config.Config, store *assetcache.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				var total int64
				for _, e := range entries {
					total += e.SizeBytes
				}

				if ctx.JSONMode() {
					if entries == nil {
						entries = []assetcache.Entry{}
					}
					return writeJSON(cmd, map[string]any{
						"cache_dir":        store.Dir(),
						"entries":          entries,
						"total_size_bytes": total,
						"max_size_bytes":   int64(cfg.Cache.MaxGiB) << 30,
					})
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintf(out, "Clip cache at %s is empty\n", store.Dir())
					return nil
				}
				fmt.Fprintf(out, "Clip cache: %s\n\n", store.Dir())
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.RemoteKey,
						formatBytes(e.SizeBytes),
						formatAge(time.Since(e.LastUsedAt)),
					})
				}
				fmt.Fprint(out, renderTable(
					[]column{left("Asset"), right("Size"), right("Last used")},
					rows,
					fmt.Sprintf("%d clips", len(entries)), formatBytes(total),
				))
				return nil
			})
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict least recently used clips until the cache fits its limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAssetCache(cmd, func(_ *config.Config, store *assetcache.Store) error {
				result, err := store.Prune(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"removed":          result.Removed,
						"freed_bytes":      result.FreedBytes,
						"total_size_bytes": result.TotalBytes,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d clips, freed %s, %s remain\n",
					result.Removed, formatBytes(result.FreedBytes), formatBytes(result.TotalBytes))
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAssetCache(cmd, func(_ *config.Config, store *assetcache.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached clips\n", removed)
				return nil
			})
		},
	}
}
