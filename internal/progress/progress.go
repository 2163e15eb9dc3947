package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"thumbsmith/internal/batch"
)

// Notifier prints the name of every thumbnail written, one per line.
//
// On a terminal each line is prefixed with a [done/total] counter. When the
// output is redirected only the bare file names are written so the output
// stays easy to pipe.
type Notifier struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	total       int
	done        int
}

// New returns a Notifier writing to out. Counters are enabled when out is a
// terminal.
func New(out io.Writer) *Notifier {
	return &Notifier{out: out, interactive: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether counters are printed.
func (n *Notifier) Interactive() bool {
	return n.interactive
}

// BatchStarted resets the counters for a new run.
func (n *Notifier) BatchStarted(_ string, total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.total = total
	n.done = 0
}

// JobDone prints successful jobs. Failed and skipped jobs only advance the
// counter; they are reported through the log and the batch report.
func (n *Notifier) JobDone(r batch.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !r.Skipped {
		n.done++
	}
	if r.Err != nil || r.Skipped {
		return
	}

	if n.interactive && n.total > 0 {
		fmt.Fprintf(n.out, "[%d/%d] %s\n", n.done, n.total, r.Job.Filename)
		return
	}
	fmt.Fprintln(n.out, r.Job.Filename)
}
