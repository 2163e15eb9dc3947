package batch

import (
	"fmt"
	"strings"
	"time"
)

// JobError records the failure of one file.
type JobError struct {
	Filename string
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// BatchError summarizes the per-file failures of a run.
type BatchError struct {
	Failures []*JobError
	Total    int
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d thumbnail(s) failed", len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-i)
			break
		}
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Report is the result of one ProcessDirectory call. File names are relative
// to the source directory and listed in completion order.
type Report struct {
	RunID     string
	SourceDir string
	DestDir   string

	Total     int
	Workers   int
	Processed []string
	Failures  []*JobError
	Skipped   []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Err returns a *BatchError when any file failed, nil otherwise.
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	return &BatchError{Failures: r.Failures, Total: r.Total}
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is one of "success", "partial" or "cancelled".
func (r *Report) Status() string {
	switch {
	case len(r.Skipped) > 0:
		return "cancelled"
	case len(r.Failures) > 0:
		return "partial"
	default:
		return "success"
	}
}
