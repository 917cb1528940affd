package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mediasync/internal/config"
	"mediasync/internal/logging"
	"mediasync/internal/runner"
)

type commandContext struct {
	configFlag *string
	runnerOpts []runner.Option

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, runnerOpts []runner.Option) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		runnerOpts: runnerOpts,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the run logger and prunes expired daily log files.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: logging.LogFilePattern,
			Exclude: []string{logging.DailyLogPath(cfg.Paths.LogDir, time.Now())},
		})
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) newRunner(extra ...runner.Option) (*runner.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	opts := append(append([]runner.Option{}, extra...), c.runnerOpts...)
	return runner.New(cfg, logger, opts...), nil
}

// applyTrackingOverride honours --tracking-file for the current invocation.
func (c *commandContext) applyTrackingOverride(path string) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	return cfg.SetTrackingFile(path)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
