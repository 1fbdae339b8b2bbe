package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/refsync/refsync/internal/backup"
	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/snapshot"
	"github.com/refsync/refsync/internal/store"
)

// Options configures a sync engine.
type Options struct {
	// LocalRoot is the local replica root. It must already exist; a missing
	// local store is fatal, never fabricated.
	LocalRoot string

	// RemoteRoot is the remote replica root: any filesystem path, including
	// network-mounted volumes. Created on first contact.
	RemoteRoot string

	// Resolver supplies conflict decisions in interactive mode.
	Resolver Resolver

	// AutoMode resolves every conflict as KeepBoth without invoking the
	// resolver. Guarantees a non-interactive run never blocks.
	AutoMode bool

	// Progress receives stage transitions. May be nil.
	Progress ProgressFunc

	// Backups preserves pre-overwrite copies of record and PDF files in
	// each replica's vault before the merge touches them.
	Backups bool
}

// Engine performs one bounded reconciliation pass per Run invocation. It
// holds no state between runs; all per-run state lives in the Run value.
// The engine does not serialize concurrent runs over the same replica pair;
// that is the caller's job.
type Engine struct {
	opts Options
}

// NewEngine validates options and returns an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.LocalRoot == "" {
		return nil, errors.New("local replica root is required")
	}
	if opts.RemoteRoot == "" {
		return nil, errors.New("remote replica root is required")
	}
	if !opts.AutoMode && opts.Resolver == nil {
		return nil, errors.New("interactive mode requires a resolver")
	}
	return &Engine{opts: opts}, nil
}

// Run is the handle for a sync pass started in the background.
type Run struct {
	cancelled atomic.Bool
	done      chan struct{}
	result    *Result
	err       error
}

// Cancel requests cooperative cancellation. It is safe from any goroutine
// and at any time; once merge application has begun the run completes
// regardless, since writes are never rolled back.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the outcome after Done is closed.
func (r *Run) Result() (*Result, error) {
	return r.result, r.err
}

// Start launches the sync pass on its own worker goroutine and returns a
// handle. The caller's goroutine is never blocked by replica I/O; the only
// suspension point inside the worker is the resolver.
func (e *Engine) Start(ctx context.Context) *Run {
	r := &Run{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.result, r.err = e.run(ctx, r)
	}()
	return r
}

// Run executes the sync pass synchronously and returns its result. The
// returned error is non-nil only for infrastructure failures; per-item
// errors are collected in the result, and a cancelled run returns a result
// with Stage StageCancelled and a nil error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	return e.run(ctx, &Run{done: make(chan struct{})})
}

func (e *Engine) run(ctx context.Context, r *Run) (*Result, error) {
	defer logging.Timer("sync")()

	result := newResult()
	cancelled := func() bool {
		return r.cancelled.Load() || ctx.Err() != nil
	}
	enter := func(stage Stage) bool {
		if cancelled() {
			result.Stage = StageCancelled
			e.opts.Progress.report(StageCancelled, result.Counts)
			logging.Info("sync cancelled", logging.Stage(string(stage)))
			return false
		}
		logging.Debug("entering stage", logging.Stage(string(stage)))
		e.opts.Progress.report(stage, result.Counts)
		return true
	}
	fail := func(err error) (*Result, error) {
		result.Stage = StageFailed
		e.opts.Progress.report(StageFailed, result.Counts)
		logging.Error("sync failed", logging.Err(err))
		return result, err
	}

	if !enter(StagePreparingRemote) {
		return result, nil
	}
	if err := snapshot.PrepareRemote(e.opts.RemoteRoot); err != nil {
		return fail(err)
	}

	if !enter(StageReadingSnapshots) {
		return result, nil
	}
	localSnap, localWarns, err := snapshot.Read(e.opts.LocalRoot)
	if err != nil {
		return fail(fmt.Errorf("local replica: %w", err))
	}
	remoteSnap, remoteWarns, err := snapshot.Read(e.opts.RemoteRoot)
	if err != nil {
		return fail(fmt.Errorf("remote replica: %w", err))
	}
	localStore, err := store.Open(e.opts.LocalRoot)
	if err != nil {
		return fail(fmt.Errorf("local replica: %w", err))
	}
	remoteStore, err := store.Open(e.opts.RemoteRoot)
	if err != nil {
		return fail(fmt.Errorf("remote replica: %w", err))
	}
	for _, w := range append(localWarns, remoteWarns...) {
		result.addError("%s", w)
	}
	var localVault, remoteVault *backup.Vault
	if e.opts.Backups {
		localVault = backup.Open(e.opts.LocalRoot)
		remoteVault = backup.Open(e.opts.RemoteRoot)
	}
	result.Counts.Records = len(unionKeys(recordKeys(localSnap), recordKeys(remoteSnap)))
	result.Counts.Pdfs = len(unionKeys(pdfKeys(localSnap), pdfKeys(remoteSnap)))

	if !enter(StageDetectingConflicts) {
		return result, nil
	}
	base := LoadBaseline(e.opts.LocalRoot)
	report := Diff(localSnap, remoteSnap, base)
	result.Counts.Conflicts = len(report.Conflicts)
	result.Counts.Identical = report.Identical

	decisions := make(map[string]Resolution)
	if len(report.Conflicts) > 0 {
		if !enter(StageResolvingConflicts) {
			return result, nil
		}
		coord := &coordinator{resolver: e.opts.Resolver, auto: e.opts.AutoMode}
		var resolutionErrs []string
		decisions, resolutionErrs, err = coord.resolve(ctx, report.Conflicts, r.cancelled.Load)
		if errors.Is(err, ErrCancelled) {
			result.Stage = StageCancelled
			e.opts.Progress.report(StageCancelled, result.Counts)
			logging.Info("sync cancelled during conflict resolution")
			return result, nil
		}
		if err != nil {
			return fail(err)
		}
		for _, re := range resolutionErrs {
			result.addError("%s", re)
		}
	}

	// Last point of no return: once ApplyingRecords begins the run
	// completes to Finalizing even if cancellation arrives mid-merge.
	if !enter(StageApplyingRecords) {
		return result, nil
	}
	app := &applier{
		local:       localStore,
		remote:      remoteStore,
		localSnap:   localSnap,
		remoteSnap:  remoteSnap,
		report:      report,
		decisions:   decisions,
		result:      result,
		cancelled:   r.cancelled.Load,
		localVault:  localVault,
		remoteVault: remoteVault,
	}
	app.applyRecords()

	e.opts.Progress.report(StageApplyingCollections, result.Counts)
	app.applyCollections()

	e.opts.Progress.report(StageApplyingPdfs, result.Counts)
	app.applyPdfs()

	e.opts.Progress.report(StageFinalizing, result.Counts)
	if err := SaveBaseline(e.opts.LocalRoot, buildBaseline(localSnap, remoteSnap)); err != nil {
		result.addError("baseline: %v", err)
	}
	if e.opts.Backups {
		for _, v := range []*backup.Vault{localVault, remoteVault} {
			if _, err := v.Prune(backup.DefaultPruneOptions()); err != nil {
				result.addError("backup prune: %v", err)
			}
		}
	}

	result.Stage = StageCompleted
	e.opts.Progress.report(StageCompleted, result.Counts)
	logging.Info("sync completed",
		logging.Count(result.TotalChanges()),
		logging.Operation("sync"),
	)
	return result, nil
}
