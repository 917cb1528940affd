package testsupport

import (
	"path/filepath"
	"testing"

	"mediasync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Library.BaseDir = filepath.Join(base, "library")
	cfgVal.Sync.TrackingFile = filepath.Join(base, "state", "tracking.json")
	cfgVal.Remote.Roots = []string{"/remote"}
	cfgVal.Remote.SFTP.Host = "127.0.0.1"
	cfgVal.Remote.SFTP.Username = "test"
	cfgVal.Remote.SFTP.Password = "test"
	cfgVal.Remote.SFTP.InsecureIgnoreHostKey = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithRoots overrides the remote roots on the test config.
func WithRoots(roots ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.Roots = roots
	}
}

// WithMovieMinSizeGB overrides the movie size threshold. Tests use tiny
// fractions of a GiB so fixtures stay small.
func WithMovieMinSizeGB(size float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Categories.MovieMinSizeGB = size
	}
}

// WithDeleteRemote toggles remote deletion after successful transfers.
func WithDeleteRemote(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.DeleteRemoteAfterTransfer = enabled
	}
}

// WithMetricsDir enables the Prometheus textfile export in a temp directory.
func WithMetricsDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.TextfileDir = filepath.Join(b.baseDir, "metrics")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
