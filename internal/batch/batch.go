package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"thumbsmith/internal/logging"
	"thumbsmith/internal/media"
	"thumbsmith/internal/memory"
	"thumbsmith/internal/metrics"
	"thumbsmith/internal/workers"
)

// Thumbnailer produces one thumbnail. *media.Transformer implements it.
type Thumbnailer interface {
	Run(src, dst string) (media.Outcome, error)
}

// Observer is told about every file of the batch. Calls never overlap: first
// the jobs workers finished or skipped, in completion order, then the files
// never dispatched because the batch was cancelled.
type Observer interface {
	JobDone(Result)
}

// StartObserver is an Observer that also wants the job count once the scan
// has finished.
type StartObserver interface {
	Observer
	BatchStarted(runID string, total int)
}

// Config configures a batch run.
type Config struct {
	// Spec builds the default Thumbnailer when Thumbnailer is nil.
	Spec      media.Spec
	SourceDir string
	DestDir   string

	// Workers is the pool size (0 = workers.Resolve default).
	Workers     int
	Thumbnailer Thumbnailer

	// Monitor pauses workers under memory pressure. Optional.
	Monitor   *memory.Monitor
	Observers []Observer

	// RunID identifies the run in logs and history (empty = new UUID).
	RunID string
}

// Job is one source file to thumbnail.
type Job struct {
	Filename   string
	SourcePath string
	DestPath   string
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Err      error
	Skipped  bool
	Duration time.Duration
	Outcome  media.Outcome
	// Worker is the worker index, or -1 for files never dispatched.
	Worker int
}

// pool carries the shared state of one ProcessDirectory call.
type pool struct {
	cfg         Config
	thumbnailer Thumbnailer

	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	active    atomic.Int64
}

// running counts ProcessDirectory calls in progress, for the health endpoint.
var running atomic.Int32

// Running reports whether a batch is in progress in this process.
func Running() bool {
	return running.Load() > 0
}

// ProcessDirectory thumbnails every eligible file in cfg.SourceDir into
// cfg.DestDir under the same name.
//
// It fails only when the source directory cannot be scanned. Per-file
// failures never stop other files; they are listed in the report, and
// Report.Err summarizes them. When ctx is cancelled no further files are
// started, running ones finish, the rest are listed as skipped and ctx.Err()
// is returned with the report.
func ProcessDirectory(ctx context.Context, cfg Config) (*Report, error) {
	running.Add(1)
	metrics.BatchRunning.Set(1)
	defer func() {
		if running.Add(-1) == 0 {
			metrics.BatchRunning.Set(0)
		}
	}()

	report := &Report{
		RunID:     cfg.RunID,
		SourceDir: cfg.SourceDir,
		DestDir:   cfg.DestDir,
		StartedAt: time.Now(),
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	files, err := media.Scan(cfg.SourceDir)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("scan_error").Inc()
		return nil, err
	}

	report.Total = len(files)
	report.Workers = workers.Resolve(cfg.Workers, len(files))

	p := &pool{
		cfg:         cfg,
		thumbnailer: cfg.Thumbnailer,
		jobs:        make(chan Job, report.Workers),
		results:     make(chan Result, report.Workers),
	}
	if p.thumbnailer == nil {
		p.thumbnailer = media.NewTransformer(cfg.Spec)
	}

	logging.Info("Batch %s: %d image(s) from %s to %s with %d worker(s)",
		report.RunID, len(files), cfg.SourceDir, cfg.DestDir, report.Workers)
	metrics.WorkerPoolSize.Set(float64(report.Workers))

	for _, o := range cfg.Observers {
		if so, ok := o.(StartObserver); ok {
			so.BatchStarted(report.RunID, report.Total)
		}
	}

	for i := 0; i < report.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		p.collect(report)
	}()

	notDispatched := p.dispatch(ctx, files)

	p.wg.Wait()
	close(p.results)
	collectorWg.Wait()

	for _, name := range notDispatched {
		p.skipped.Add(1)
		report.Skipped = append(report.Skipped, name)
		p.notify(Result{Job: p.job(name), Skipped: true, Worker: -1})
	}
	report.FinishedAt = time.Now()

	logging.Info("Batch %s complete: %d processed, %d failed, %d skipped in %v",
		report.RunID, p.processed.Load(), p.failed.Load(), p.skipped.Load(), report.Duration())
	recordBatchMetrics(report)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// dispatch feeds jobs to the workers and returns the names it never sent
// because ctx was cancelled.
func (p *pool) dispatch(ctx context.Context, files []string) []string {
	defer close(p.jobs)

	for i, name := range files {
		if ctx.Err() != nil {
			return files[i:]
		}

		select {
		case p.jobs <- p.job(name):
		case <-ctx.Done():
			return files[i:]
		}
	}
	return nil
}

func (p *pool) job(name string) Job {
	return Job{
		Filename:   name,
		SourcePath: filepath.Join(p.cfg.SourceDir, name),
		DestPath:   filepath.Join(p.cfg.DestDir, name),
	}
}

func (p *pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		if ctx.Err() != nil || !p.cfg.Monitor.WaitIfPaused(ctx) {
			p.results <- Result{Job: job, Skipped: true, Worker: id}
			continue
		}

		p.results <- p.run(job, id)
	}
}

// run executes one job, turning a panic into that job's failure.
func (p *pool) run(job Job, id int) (res Result) {
	res = Result{Job: job, Worker: id}
	start := time.Now()

	p.active.Add(1)
	metrics.WorkersActive.Inc()

	defer func() {
		if r := recover(); r != nil {
			metrics.WorkerPanics.Inc()
			logging.Error("Worker %d panicked on %s: %v\n%s", id, job.Filename, r, debug.Stack())
			res.Err = &PanicError{Value: r}
		}
		res.Duration = time.Since(start)
		p.active.Add(-1)
		metrics.WorkersActive.Dec()
	}()

	res.Outcome, res.Err = p.thumbnailer.Run(job.SourcePath, job.DestPath)
	return res
}

// collect drains results into the report and notifies observers.
func (p *pool) collect(report *Report) {
	for res := range p.results {
		switch {
		case res.Skipped:
			p.skipped.Add(1)
			report.Skipped = append(report.Skipped, res.Job.Filename)

		case res.Err != nil:
			p.failed.Add(1)
			report.Failures = append(report.Failures, &JobError{Filename: res.Job.Filename, Err: res.Err})
			metrics.ThumbnailsTotal.WithLabelValues(failureStatus(res.Err)).Inc()
			logging.Warn("Failed to create thumbnail for %s: %v", res.Job.Filename, res.Err)

		default:
			p.processed.Add(1)
			report.Processed = append(report.Processed, res.Job.Filename)
			metrics.ThumbnailsTotal.WithLabelValues("success").Inc()
			metrics.ThumbnailDuration.Observe(res.Duration.Seconds())
		}

		p.notify(res)
	}
}

func (p *pool) notify(res Result) {
	for _, o := range p.cfg.Observers {
		o.JobDone(res)
	}
}

func failureStatus(err error) string {
	var (
		decodeErr *media.DecodeError
		encodeErr *media.EncodeError
		writeErr  *media.WriteError
		panicErr  *PanicError
	)
	switch {
	case errors.As(err, &panicErr):
		return "panic"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &encodeErr):
		return "encode_error"
	case errors.As(err, &writeErr):
		return "write_error"
	default:
		return "error"
	}
}

func recordBatchMetrics(r *Report) {
	metrics.BatchRunsTotal.WithLabelValues(r.Status()).Inc()

	d := r.Duration()
	metrics.BatchLastRunDuration.Set(d.Seconds())
	metrics.BatchLastRunTimestamp.Set(float64(r.FinishedAt.Unix()))
	metrics.BatchFiles.WithLabelValues("processed").Set(float64(len(r.Processed)))
	metrics.BatchFiles.WithLabelValues("failed").Set(float64(len(r.Failures)))
	metrics.BatchFiles.WithLabelValues("skipped").Set(float64(len(r.Skipped)))
	if d > 0 {
		metrics.BatchFilesPerSecond.Set(float64(len(r.Processed)) / d.Seconds())
	}
}

// PanicError is a recovered panic from a single job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
