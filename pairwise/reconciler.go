package pairwise

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/stitch/blockfile"
	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

// Result describes a finished job.
type Result struct {
	Job      Job
	RunID    string
	Attempts int  // pipeline attempts made
	Skipped  bool // outputs were already valid so nothing was computed
	NewEdges labels.MergeHistory
	Matched  int
	Elapsed  time.Duration
}

// Reconciler runs jobs against a store.  It holds no state between jobs.
type Reconciler struct {
	store   storage.Store
	cfg     *Config
	metrics *Metrics
}

// NewReconciler returns a Reconciler.  A nil config uses the defaults and nil
// metrics records nothing.
func NewReconciler(store storage.Store, cfg *Config, m *Metrics) *Reconciler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Reconciler{store: store, cfg: cfg, metrics: m}
}

// Reconcile runs a single job with the given configuration.
func Reconcile(ctx context.Context, store storage.Store, job Job, cfg *Config) (*Result, error) {
	return NewReconciler(store, cfg, nil).Run(ctx, job)
}

// Run reconciles the job's blocks and writes both outputs, retrying transient
// failures up to the configured number of attempts.  If both outputs already
// verify, nothing is recomputed.  The returned error is a ShapeMismatch,
// Cancelled or ExhaustedRetries error.
func (r *Reconciler) Run(ctx context.Context, job Job) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, stitch.WrapError(stitch.ShapeMismatch, err)
	}
	timedLog := stitch.NewTimeLog()
	res := &Result{Job: job, RunID: uuid.New().String()}
	stitch.Infof("Starting reconciliation %s: %s\n", res.RunID, job)

	valid, out := r.verifyOutputs(ctx, job)
	if out.Kind == stitch.Cancelled {
		return res, out.Err
	}
	if valid {
		r.metrics.RecordSkip()
		res.Skipped = true
		res.Elapsed = timedLog.Elapsed()
		stitch.Infof("Outputs %s and %s already valid, skipping\n", job.OutA, job.OutB)
		return res, nil
	}

	var last Outcome
	var aborted bool
	op := func() error {
		if err := ctx.Err(); err != nil {
			aborted = true
			return backoff.Permanent(stitch.WrapError(stitch.Cancelled, err))
		}
		res.Attempts++
		rec, out := r.attempt(ctx, job)
		if out.OK() {
			if valid, out = r.verifyOutputs(ctx, job); out.OK() && !valid {
				out = failed(StageVerify, stitch.NewError(stitch.VerificationFailure,
					"written outputs %s and %s did not verify", job.OutA, job.OutB))
			}
		}
		r.metrics.RecordAttempt(out)
		if out.OK() {
			r.metrics.RecordReconciliation(rec)
			res.NewEdges = rec.NewEdges
			res.Matched = rec.Matching.Len()
			return nil
		}
		if !out.Retryable() {
			stitch.Errorf("Attempt %d of %s aborted: %s\n", res.Attempts, res.RunID, out)
			aborted = true
			return backoff.Permanent(out.Err)
		}
		stitch.Warningf("Attempt %d of %d for %s failed: %s\n", res.Attempts, r.cfg.Retry.Attempts, res.RunID, out)
		last = out
		return out.Err
	}
	attempts := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(r.cfg.Retry.Attempts-1))
	err := backoff.Retry(op, backoff.WithContext(attempts, ctx))
	switch {
	case err == nil:
		res.Elapsed = timedLog.Elapsed()
		timedLog.Infof("Reconciliation %s finished after %d attempt(s), %d new merges",
			res.RunID, res.Attempts, len(res.NewEdges))
		return res, nil
	case aborted:
		return res, err
	case ctx.Err() != nil:
		return res, stitch.WrapError(stitch.Cancelled, ctx.Err())
	}
	return res, stitch.NewError(stitch.ExhaustedRetries,
		"unable to produce valid outputs %s and %s after %d attempts: %v",
		job.OutA, job.OutB, res.Attempts, last.Err)
}

// attempt runs read, reconcile and write once.
func (r *Reconciler) attempt(ctx context.Context, job Job) (*labels.Reconciliation, Outcome) {
	a, b, out := r.readInputs(ctx, job)
	if !out.OK() {
		return nil, out
	}
	rec, out := r.reconcile(ctx, job, a, b)
	if !out.OK() {
		return nil, out
	}
	return rec, r.writeOutputs(ctx, job, rec)
}

func (r *Reconciler) observe(stage string, start time.Time) {
	elapsed := time.Since(start)
	r.metrics.ObserveStage(stage, elapsed.Seconds())
	if stitch.Verbose {
		stitch.Debugf("Stage %s took %s\n", stage, elapsed)
	}
}

func (r *Reconciler) readInputs(ctx context.Context, job Job) (a, b *blockfile.File, out Outcome) {
	defer r.observe(StageRead, time.Now())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = r.readBlock(gctx, job.BlockA)
		return
	})
	g.Go(func() (err error) {
		b, err = r.readBlock(gctx, job.BlockB)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, nil, failed(StageRead, err)
	}
	return a, b, succeeded(StageRead)
}

// readBlock reads an input block file, retrying with a fixed backoff since an
// upstream producer may still be writing it.
func (r *Reconciler) readBlock(ctx context.Context, path string) (*blockfile.File, error) {
	tries := r.cfg.Retry.ReadTries
	var f *blockfile.File
	var try int
	read := func() (err error) {
		try++
		f, err = blockfile.ReadFile(ctx, r.store, path)
		if err != nil && (ctx.Err() != nil || stitch.IsKind(err, stitch.Cancelled)) {
			return backoff.Permanent(stitch.WrapError(stitch.Cancelled, err))
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		r.metrics.RecordReadRetry()
		stitch.Warningf("Unable to read %s (try %d of %d), retrying in %s: %v\n", path, try, tries, next, err)
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.cfg.Retry.ReadBackoff.Duration), uint64(tries-1))
	err := backoff.RetryNotify(read, backoff.WithContext(b, ctx), notify)
	switch {
	case err == nil:
		return f, nil
	case stitch.IsKind(err, stitch.Cancelled):
		return nil, stitch.WrapError(stitch.Cancelled, err)
	}
	return nil, stitch.NewError(stitch.TransientIO, "unable to read %s after %d tries: %w", path, try, err)
}

func (r *Reconciler) reconcile(ctx context.Context, job Job, a, b *blockfile.File) (*labels.Reconciliation, Outcome) {
	defer r.observe(StageReconcile, time.Now())
	bd := labels.Boundary{Direction: job.Direction, Halo: job.Halo, Mode: r.cfg.Matching.Mode}
	rec, err := labels.Reconcile(ctx, a.Block(), b.Block(), bd)
	if err != nil {
		return nil, failed(StageReconcile, err)
	}
	return rec, succeeded(StageReconcile)
}

func (r *Reconciler) writeOutputs(ctx context.Context, job Job, rec *labels.Reconciliation) Outcome {
	defer r.observe(StageWrite, time.Now())
	a := &blockfile.File{Labels: rec.A.Volume, Merges: rec.A.Merges}
	b := &blockfile.File{Labels: rec.B.Volume, Merges: rec.B.Merges}
	if err := WritePair(ctx, r.store, r.cfg.Output, job.OutA, a, job.OutB, b); err != nil {
		return failed(StageWrite, err)
	}
	return succeeded(StageWrite)
}

// verifyOutputs returns true if both outputs exist and verify.  Invalid outputs
// are removed.
func (r *Reconciler) verifyOutputs(ctx context.Context, job Job) (bool, Outcome) {
	defer r.observe(StageVerify, time.Now())
	for _, path := range []string{job.OutA, job.OutB} {
		valid, err := blockfile.VerifyFile(ctx, r.store, path)
		if err != nil {
			return false, failed(StageVerify, err)
		}
		if !valid {
			return false, succeeded(StageVerify)
		}
	}
	return true, succeeded(StageVerify)
}
