package history

import (
	"context"
	"fmt"
	"sync"

	"thumbsmith/internal/batch"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/media"
)

// Recorder writes one batch run into a Store. It is a batch.StartObserver:
// pass it in batch.Config.Observers, then call Finish with the report.
//
// Database errors never fail the batch. They are logged and the first one is
// kept for Err.
type Recorder struct {
	store *Store
	ctx   context.Context
	run   Run

	mu      sync.Mutex
	started bool
	err     error
}

// NewRecorder returns a Recorder for a run over sourceDir and destDir with
// the given spec.
func (s *Store) NewRecorder(ctx context.Context, sourceDir, destDir string, spec media.Spec) *Recorder {
	return &Recorder{
		store: s,
		ctx:   ctx,
		run: Run{
			SourceDir: sourceDir,
			DestDir:   destDir,
			Width:     spec.Width,
			Height:    spec.Height,
		},
	}
}

// BatchStarted inserts the run row.
func (r *Recorder) BatchStarted(runID string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run.ID = runID
	r.run.Total = total
	if err := r.store.BeginRun(context.WithoutCancel(r.ctx), r.run); err != nil {
		r.fail("begin run", err)
		return
	}
	r.started = true
}

// JobDone stores the outcome of one file.
func (r *Recorder) JobDone(res batch.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	rec := JobRecord{
		RunID:       r.run.ID,
		Filename:    res.Job.Filename,
		Status:      resultStatus(res),
		Orientation: int(res.Outcome.Orientation),
		Correction:  res.Outcome.Correction,
		Duration:    res.Duration,
	}
	if rec.Orientation == 0 {
		rec.Orientation = int(media.OrientationNormal)
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := r.store.RecordResult(context.WithoutCancel(r.ctx), rec); err != nil {
		r.fail("record "+res.Job.Filename, err)
	}
}

// Finish stores the final counters of report. A nil report (scan failure)
// leaves nothing to record.
func (r *Recorder) Finish(report *batch.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report == nil || !r.started {
		return r.err
	}

	run := r.run
	run.Workers = report.Workers
	run.Total = report.Total
	run.Processed = len(report.Processed)
	run.Failed = len(report.Failures)
	run.Skipped = len(report.Skipped)
	run.Status = report.Status()
	run.StartedAt = report.StartedAt
	run.FinishedAt = report.FinishedAt

	if err := r.store.FinishRun(context.WithoutCancel(r.ctx), run); err != nil {
		r.fail("finish run", err)
	}
	return r.err
}

// Err returns the first database error seen by the recorder.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) fail(what string, err error) {
	logging.Warn("Run history: failed to %s: %v", what, err)
	if r.err == nil {
		r.err = fmt.Errorf("run history: %s: %w", what, err)
	}
}

func resultStatus(res batch.Result) string {
	switch {
	case res.Skipped:
		return "skipped"
	case res.Err != nil:
		return "failed"
	default:
		return "processed"
	}
}
