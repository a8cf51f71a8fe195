package preflight

import (
	"context"
	"path/filepath"

	"openbq/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the free space required where output is written.
const minFreeBytes = 64 << 20

// RunAll executes the checks for a job described by opts. A zero InputDir
// skips the job-specific checks.
func RunAll(ctx context.Context, cfg *config.Config, opts config.JobOptions) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	add := func(r Result) bool {
		results = append(results, r)
		return ctx.Err() == nil
	}

	if !add(CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir)) {
		return results
	}
	if cfg.Paths.LogDir != "" {
		if !add(CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)) {
			return results
		}
	}
	if opts.InputDir != "" {
		if !add(CheckReadable("Input directory", opts.InputDir)) {
			return results
		}
		out := nearestExisting(opts.OutputDir)
		if !add(CheckDirectoryAccess("Output directory", out)) {
			return results
		}
		if !add(CheckFreeSpace("Output free space", out, minFreeBytes)) {
			return results
		}
	}
	add(CheckEngine(cfg, opts))
	return results
}

// nearestExisting walks up from path until it finds a directory that exists;
// the output directory is created lazily by the job.
func nearestExisting(path string) string {
	if path == "" {
		return path
	}
	current := filepath.Clean(path)
	for {
		if exists(current) {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
