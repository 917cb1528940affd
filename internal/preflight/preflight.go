package preflight

import (
	"mediasync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Library directory", cfg.Library.BaseDir),
	}

	// Metrics output (when configured)
	if cfg.Metrics.TextfileDir != "" {
		results = append(results, CheckDirectoryAccess("Metrics directory", cfg.Metrics.TextfileDir))
	}

	results = append(results, CheckTransport(cfg))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
