/*
Package workers sizes the thumbnail worker pool.

Decoding, resizing and encoding images is CPU-heavy but each job also
reads and writes files, so batches use the mixed multiplier (1.5 workers
per available CPU) capped at DefaultLimit. GOMAXPROCS is used instead of
runtime.NumCPU so container CPU limits are respected:

	// Returns 2 in a pod limited to 2 CPUs on a 64-core node
	runtime.GOMAXPROCS(0)

# Usage

	n := workers.Resolve(cfg.Workers, len(files))

Resolve honours an explicit request, falls back to ForMixed(DefaultLimit)
and never returns more workers than there are jobs.

libvips sizes its own thread pool with ForCPU, since those threads never
wait on I/O:

	media.InitVips(workers.ForCPU(workers.DefaultLimit))

# Environment Variable Override

THUMBSMITH_WORKERS pins the automatic calculation (still subject to the
limit argument):

	THUMBSMITH_WORKERS=4 thumbsmith 150 150 ./photos ./thumbs

All functions are safe for concurrent use.
*/
package workers
