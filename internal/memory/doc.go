// Package memory keeps thumbsmith inside its container memory budget.
//
// Decoding a large JPEG allocates width*height*4 bytes before any resizing
// happens, so a wide worker pool over a directory of camera images can spike
// well past the steady state. Two tools address this.
//
// # Configuration
//
// [ConfigureFromEnv] sets the Go soft memory limit early in main:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes or with a unit suffix
//     ("512Mi", "2GiB"), usually injected by the Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap (default 0.85).
//     Lower it when the libvips decoder is enabled, since libvips allocates
//     outside the Go heap.
//
// # Backpressure
//
// [Monitor] samples heap usage every CheckInterval. Above CriticalWaterMark it
// marks itself paused and triggers a GC; workers call [Monitor.WaitIfPaused]
// before decoding their next image and block until usage falls below
// HighWaterMark, the monitor stops, or their context ends.
//
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
//	if !mon.WaitIfPaused(ctx) {
//	    return ctx.Err()
//	}
//
// Without a limit the monitor never pauses.
package memory
