package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediasync/internal/config"
	"mediasync/internal/logging"
	"mediasync/internal/notifications"
	"mediasync/internal/preflight"
	"mediasync/internal/remote"
	"mediasync/internal/services"
	"mediasync/internal/tracking"
	"mediasync/internal/transfer"
)

// Run modes recorded in history, metrics and notifications.
const (
	ModeSync      = "sync"
	ModePrune     = "prune"
	ModeBootstrap = "bootstrap"
)

// historyKeep bounds the number of history rows retained.
const historyKeep = 1000

// Dialer opens a remote session for the configured transport.
type Dialer func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Client, error)

// Runner executes sync, prune and bootstrap invocations.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	dial     Dialer
	notifier notifications.Service
	progress transfer.Progress
	sleeper  func(time.Duration)
	now      func() time.Time
	newID    func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithDialer replaces the transport dialer (useful for tests).
func WithDialer(dial Dialer) Option {
	return func(r *Runner) {
		if dial != nil {
			r.dial = dial
		}
	}
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(r *Runner) {
		if notifier != nil {
			r.notifier = notifier
		}
	}
}

// WithProgress installs a transfer progress collaborator.
func WithProgress(progress transfer.Progress) Option {
	return func(r *Runner) {
		r.progress = progress
	}
}

// WithSleeper overrides how transfer retry delays are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(r *Runner) {
		r.sleeper = sleeper
	}
}

// WithClock overrides the time source for ledger timestamps and prune cutoffs.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a runner for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		dial:   remote.Dial,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = notifications.NewService(cfg)
	}
	return r
}

// invocation carries the run-scoped identity shared by every log line.
type invocation struct {
	id      string
	mode    string
	dryRun  bool
	started time.Time
	ctx     context.Context
	// logger carries run_id and mode for the engines; log adds the runner
	// component for the runner's own lines.
	logger *slog.Logger
	log    *slog.Logger
}

func (r *Runner) begin(ctx context.Context, mode string, dryRun bool) invocation {
	id := r.newID()
	ctx = services.WithMode(services.WithRunID(ctx, id), mode)
	logger := logging.WithContext(ctx, r.logger)
	inv := invocation{
		id:      id,
		mode:    mode,
		dryRun:  dryRun,
		started: r.now(),
		ctx:     ctx,
		logger:  logger,
		log:     logging.NewComponentLogger(logger, "runner"),
	}
	inv.log.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Bool("dry_run", dryRun),
	)
	return inv
}

// session holds the ledger lock and the remote connection for one run.
type session struct {
	ledger *tracking.Store
	client remote.Client
}

func (s *session) Close() error {
	var errs []error
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close remote: %w", err))
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) openSession(inv invocation) (*session, error) {
	if check := preflight.CheckTransport(r.cfg); !check.Passed {
		return nil, services.Wrap(services.ErrDependency, "runner", "preflight", check.Detail, nil)
	}
	ledger, err := tracking.Open(r.cfg.Sync.TrackingFile, inv.logger)
	if err != nil {
		return nil, err
	}
	client, err := r.dial(inv.ctx, r.cfg, inv.logger)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	return &session{ledger: ledger, client: client}, nil
}

func (r *Runner) closeSession(inv invocation, sess *session) {
	if err := sess.Close(); err != nil {
		logging.WarnWithContext(inv.log, "session close failed", "session_close_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "remote connection or ledger lock may linger until exit"),
		)
	}
}
