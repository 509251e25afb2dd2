package preflight

import (
	"context"

	"backdrop/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minTempFreeBytes is the free space a run directory needs for normalized
// clips and the merged output.
const minTempFreeBytes = 2 << 30

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Temp root", cfg.Paths.TempRoot))
	results = append(results, CheckFreeSpace("Temp root free space", cfg.Paths.TempRoot, minTempFreeBytes))
	results = append(results, CheckFile("Default background", cfg.Background.DefaultAsset))

	if !cfg.Background.Enabled {
		return results
	}
	results = append(results, CheckFile("Theme metadata", cfg.Background.ThemeMetadataPath))

	if cfg.Storage.Backend == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Local clip directory", cfg.Storage.LocalDir))
	} else if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Clip cache", cfg.BackgroundCacheDir()))
		results = append(results, CheckFreeSpace("Clip cache free space", cfg.BackgroundCacheDir(), uint64(cfg.Cache.MinFreeGiB)<<30))
	}

	if cfg.CatalogCache.Enabled {
		results = append(results, CheckRedisFromConfig(ctx, cfg))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
