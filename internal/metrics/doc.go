// Package metrics provides Prometheus instrumentation for thumbsmith.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "thumbsmith_".
//
// # Metric Categories
//
// ## Thumbnail Metrics
//
//   - ThumbnailsTotal: Counter of jobs by outcome
//   - ThumbnailDuration: Histogram of end-to-end job time
//   - ThumbnailPhaseDuration: Histogram by pipeline phase (decode, orient, crop, resize, encode, write)
//   - ThumbnailDecodeByFormat: Counter of decoded sources by format
//   - ThumbnailDecoderFallbacks: Counter of libvips failures retried in pure Go
//
// ## Orientation Metrics
//
//   - OrientationResolved: Counter by EXIF orientation value
//   - OrientationReadFailures: Counter of lookups that fell back to 1, by reason
//   - OrientationCorrections: Counter of applied rotations and flips
//
// ## Batch Metrics
//
//   - BatchRunsTotal, BatchRunning, BatchLastRunDuration, BatchLastRunTimestamp
//   - BatchFiles: Gauge of the last run's files by status (processed/failed/skipped)
//   - WorkerPoolSize, WorkersActive, WorkerPanics
//   - ScannerDuration, ScannerFilesFound, ScannerEntriesSkipped, ScannerErrors
//
// ## Filesystem, Memory and History Metrics
//
//   - FilesystemRetry*: NFS stale handle retries per operation and volume,
//     recorded through the observer returned by [NewFilesystemObserver]
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//   - HistoryQueriesTotal, HistoryQueryDuration
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight: recorded
//     by the middleware package around the exposition router
//
// # Exposition
//
// [NewRouter] returns a gorilla/mux router serving /metrics and /healthz.
// The CLI starts it with [StartServer] when --metrics-addr is set, so that
// long batches can be scraped while they run:
//
//	srv, err := metrics.StartServer(":9090", metrics.NewRouter(metrics.RouterOptions{Version: v}))
//	...
//	defer srv.Shutdown(ctx)
//
// # Prometheus Queries
//
// Failure rate over the last hour:
//
//	sum(rate(thumbsmith_thumbnails_total{status!="success"}[1h])) / sum(rate(thumbsmith_thumbnails_total[1h]))
//
// P95 resize time:
//
//	histogram_quantile(0.95, sum(rate(thumbsmith_thumbnail_phase_duration_seconds_bucket{phase="resize"}[5m])) by (le))
package metrics
