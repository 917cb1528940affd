package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediasync/internal/logging"
	"mediasync/internal/remote"
	"mediasync/internal/services"
)

const (
	// PartialSuffix is appended to the destination while data is in flight.
	PartialSuffix = ".partial"

	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
	copyBufferSize     = 1 << 20
)

// Progress receives transfer progress. Implementations must be cheap; Add is
// called for every buffer written.
type Progress interface {
	Start(remotePath string, total, offset int64)
	Add(n int)
	Done(remotePath string, err error)
}

type noopProgress struct{}

func (noopProgress) Start(string, int64, int64) {}
func (noopProgress) Add(int)                    {}
func (noopProgress) Done(string, error)         {}

// Outcome describes a finished transfer.
type Outcome struct {
	Bytes    int64
	Attempts int
	// Resumed is true when any attempt continued from an existing partial.
	Resumed  bool
	Duration time.Duration
}

// Engine copies remote files to local paths.
type Engine struct {
	client      remote.Client
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	resume      bool
	sleeper     func(time.Duration)
	progress    Progress
}

// Option customizes the engine.
type Option func(*Engine)

// WithMaxAttempts overrides the attempt limit (defaults to 3).
func WithMaxAttempts(attempts int) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.maxAttempts = attempts
		}
	}
}

// WithRetryDelay overrides the fixed delay between attempts (defaults to 2s).
func WithRetryDelay(delay time.Duration) Option {
	return func(e *Engine) {
		if delay >= 0 {
			e.retryDelay = delay
		}
	}
}

// WithResume toggles resuming from existing partial files (enabled by default).
func WithResume(enabled bool) Option {
	return func(e *Engine) {
		e.resume = enabled
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleeper = sleeper
	}
}

// WithProgress installs a progress collaborator.
func WithProgress(progress Progress) Option {
	return func(e *Engine) {
		if progress != nil {
			e.progress = progress
		}
	}
}

// New constructs an engine reading from client.
func New(client remote.Client, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		client:      client,
		logger:      logging.NewComponentLogger(logger, "transfer"),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		resume:      true,
		progress:    noopProgress{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer downloads remotePath to localPath. size is the remote size from
// the listing and must match the bytes received. Failures after the last
// attempt wrap services.ErrTransfer.
func (e *Engine) Transfer(ctx context.Context, remotePath, localPath string, size int64) (Outcome, error) {
	start := time.Now()
	outcome := Outcome{}
	partial := localPath + PartialSuffix

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return outcome, services.Wrap(services.ErrTransfer, "transfer", "prepare", "create destination directory", err)
	}
	if err := e.removeStaleDestination(localPath, size); err != nil {
		return outcome, err
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, e.retryDelay); err != nil {
				lastErr = err
				break
			}
		}
		outcome.Attempts = attempt
		resumed, err := e.attempt(ctx, remotePath, partial, localPath, size)
		if resumed {
			outcome.Resumed = true
		}
		if err == nil {
			outcome.Bytes = size
			outcome.Duration = time.Since(start)
			e.logger.Info("transfer complete",
				logging.String(logging.FieldEventType, "transfer_completed"),
				logging.String("remote_path", remotePath),
				logging.String("local_path", localPath),
				logging.Int64("size_bytes", size),
				logging.Int("attempts", attempt),
				logging.Bool("resumed", outcome.Resumed),
				logging.Duration("duration", outcome.Duration))
			return outcome, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logging.WarnWithContext(e.logger, "transfer attempt failed", "transfer_attempt_failed",
			logging.String("remote_path", remotePath),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", e.maxAttempts),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check remote connectivity and local free space"),
			logging.String(logging.FieldImpact, "file will be retried"),
		)
	}

	if !e.resume {
		_ = os.Remove(partial)
	}
	outcome.Duration = time.Since(start)
	msg := fmt.Sprintf("%s failed after %d attempt(s)", remotePath, outcome.Attempts)
	return outcome, services.Wrap(services.ErrTransfer, "transfer", "download", msg, lastErr)
}

func (e *Engine) removeStaleDestination(localPath string, size int64) error {
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return services.Wrap(services.ErrTransfer, "transfer", "prepare", "stat destination", err)
	}
	if info.Size() == size {
		return nil
	}
	e.logger.Info("removing stale destination with mismatched size",
		logging.String(logging.FieldEventType, "transfer_stale_removed"),
		logging.String("local_path", localPath),
		logging.Int64("local_size_bytes", info.Size()),
		logging.Int64("remote_size_bytes", size))
	if err := os.Remove(localPath); err != nil {
		return services.Wrap(services.ErrTransfer, "transfer", "prepare", "remove stale destination", err)
	}
	return nil
}

// attempt performs one download pass. It reports whether it continued from
// an existing partial.
func (e *Engine) attempt(ctx context.Context, remotePath, partial, localPath string, size int64) (bool, error) {
	offset, err := e.partialOffset(partial, size)
	if err != nil {
		return false, err
	}
	resumed := offset > 0

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resumed {
		flags = os.O_WRONLY | os.O_APPEND
		e.logger.Info("resuming partial download",
			logging.String(logging.FieldEventType, "transfer_resumed"),
			logging.String("remote_path", remotePath),
			logging.Int64("offset_bytes", offset),
			logging.Int64("size_bytes", size))
	}
	file, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return resumed, fmt.Errorf("open partial: %w", err)
	}

	reader, err := e.client.Open(ctx, remotePath, offset)
	if err != nil {
		_ = file.Close()
		return resumed, fmt.Errorf("open remote: %w", err)
	}

	e.progress.Start(remotePath, size, offset)
	_, copyErr := io.CopyBuffer(&progressWriter{w: file, progress: e.progress}, &contextReader{ctx: ctx, r: reader}, make([]byte, copyBufferSize))
	_ = reader.Close()
	if copyErr == nil {
		copyErr = file.Sync()
	}
	if closeErr := file.Close(); copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		e.progress.Done(remotePath, copyErr)
		return resumed, fmt.Errorf("copy: %w", copyErr)
	}

	info, err := os.Stat(partial)
	if err != nil {
		e.progress.Done(remotePath, err)
		return resumed, fmt.Errorf("stat partial: %w", err)
	}
	if info.Size() != size {
		err := fmt.Errorf("size mismatch: received %d bytes, expected %d", info.Size(), size)
		e.progress.Done(remotePath, err)
		_ = os.Remove(partial)
		return resumed, err
	}
	if err := os.Rename(partial, localPath); err != nil {
		e.progress.Done(remotePath, err)
		return resumed, fmt.Errorf("finalize: %w", err)
	}
	e.progress.Done(remotePath, nil)
	return resumed, nil
}

// partialOffset decides where the next attempt starts: the size of a usable
// partial, or zero after discarding one.
func (e *Engine) partialOffset(partial string, size int64) (int64, error) {
	info, err := os.Stat(partial)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat partial: %w", err)
	}
	if e.resume && info.Size() < size {
		return info.Size(), nil
	}
	if err := os.Remove(partial); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("discard partial: %w", err)
	}
	return 0, nil
}

func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type progressWriter struct {
	w        io.Writer
	progress Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.progress.Add(n)
	}
	return n, err
}
