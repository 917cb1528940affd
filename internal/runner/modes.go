package runner

import (
	"context"

	"mediasync/internal/bootstrap"
	"mediasync/internal/categorize"
	"mediasync/internal/localdup"
	"mediasync/internal/pruner"
	"mediasync/internal/syncer"
	"mediasync/internal/transfer"
)

// SyncRequest carries the per-invocation sync flags. Remote roots, library
// location and remote deletion come from the config.
type SyncRequest struct {
	DryRun bool
	Force  bool
}

// PruneRequest carries the per-invocation prune flags. The retention window
// comes from prune.days_old.
type PruneRequest struct {
	DryRun bool
}

// BootstrapRequest carries the per-invocation bootstrap flags.
type BootstrapRequest struct {
	DryRun bool
}

// Sync transfers untracked remote files into the library.
func (r *Runner) Sync(ctx context.Context, req SyncRequest) (syncer.Result, error) {
	inv := r.begin(ctx, ModeSync, req.DryRun)
	result, err := r.sync(inv, req)
	r.finish(inv, syncReport(result), err)
	return result, err
}

func (r *Runner) sync(inv invocation, req SyncRequest) (syncer.Result, error) {
	sess, err := r.openSession(inv)
	if err != nil {
		return syncer.Result{DryRun: req.DryRun}, err
	}
	defer r.closeSession(inv, sess)

	transferOpts := []transfer.Option{
		transfer.WithMaxAttempts(r.cfg.Sync.RetryAttempts),
		transfer.WithRetryDelay(r.cfg.RetryDelay()),
		transfer.WithResume(r.cfg.Sync.Resume),
		transfer.WithProgress(r.progress),
	}
	if r.sleeper != nil {
		transferOpts = append(transferOpts, transfer.WithSleeper(r.sleeper))
	}
	engine := transfer.New(sess.client, inv.logger, transferOpts...)
	detector := localdup.New(r.cfg.LibraryRoots(), inv.logger)

	s := syncer.New(sess.client, sess.ledger, engine, detector, inv.logger, syncer.WithClock(r.now))
	return s.Run(inv.ctx, syncer.Options{
		Roots:        r.cfg.Remote.Roots,
		LibraryDir:   r.cfg.Library.BaseDir,
		Rules:        categorize.RulesFromConfig(r.cfg),
		DeleteRemote: r.cfg.Sync.DeleteRemoteAfterTransfer,
		DryRun:       req.DryRun,
		Force:        req.Force,
	})
}

// Prune deletes remote files whose ledger entries are older than
// prune.days_old.
func (r *Runner) Prune(ctx context.Context, req PruneRequest) (pruner.Result, error) {
	inv := r.begin(ctx, ModePrune, req.DryRun)
	result, err := r.prune(inv, req)
	r.finish(inv, pruneReport(result), err)
	return result, err
}

func (r *Runner) prune(inv invocation, req PruneRequest) (pruner.Result, error) {
	sess, err := r.openSession(inv)
	if err != nil {
		return pruner.Result{DryRun: req.DryRun, DaysOld: r.cfg.Prune.DaysOld}, err
	}
	defer r.closeSession(inv, sess)

	p := pruner.New(sess.client, sess.ledger, inv.logger, pruner.WithClock(r.now))
	return p.Prune(inv.ctx, pruner.Options{
		DaysOld: r.cfg.Prune.DaysOld,
		DryRun:  req.DryRun,
	})
}

// Bootstrap records every current remote file as already handled.
func (r *Runner) Bootstrap(ctx context.Context, req BootstrapRequest) (bootstrap.Result, error) {
	inv := r.begin(ctx, ModeBootstrap, req.DryRun)
	result, err := r.bootstrap(inv, req)
	r.finish(inv, bootstrapReport(result), err)
	return result, err
}

func (r *Runner) bootstrap(inv invocation, req BootstrapRequest) (bootstrap.Result, error) {
	sess, err := r.openSession(inv)
	if err != nil {
		return bootstrap.Result{DryRun: req.DryRun}, err
	}
	defer r.closeSession(inv, sess)

	b := bootstrap.New(sess.client, sess.ledger, inv.logger)
	return b.Initialize(inv.ctx, bootstrap.Options{
		Roots:  r.cfg.Remote.Roots,
		DryRun: req.DryRun,
	})
}
