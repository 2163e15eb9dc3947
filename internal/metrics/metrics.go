package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Thumbnail metrics
var (
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_thumbnails_total",
			Help: "Total number of thumbnail jobs by outcome",
		},
		[]string{"status"}, // "success", "decode_error", "encode_error", "write_error", "panic"
	)

	ThumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbsmith_thumbnail_duration_seconds",
			Help:    "End-to-end duration of a single thumbnail job in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ThumbnailPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsmith_thumbnail_phase_duration_seconds",
			Help:    "Duration of each thumbnail pipeline phase in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"phase"}, // "decode", "orient", "crop", "resize", "encode", "write"
	)

	ThumbnailDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_thumbnail_decode_by_format_total",
			Help: "Total number of decoded source images by format",
		},
		[]string{"format"},
	)

	ThumbnailDecoderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbsmith_thumbnail_decoder_fallbacks_total",
			Help: "Total number of libvips decode failures retried with the pure Go decoder",
		},
	)
)

// Orientation metrics
var (
	OrientationResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_orientation_resolved_total",
			Help: "Total number of resolved EXIF orientation values",
		},
		[]string{"orientation"}, // "1" through "8"
	)

	OrientationReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_orientation_read_failures_total",
			Help: "Total number of orientation lookups that fell back to the default",
		},
		[]string{"reason"}, // "open", "no_exif", "corrupt", "out_of_range"
	)

	OrientationCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_orientation_corrections_total",
			Help: "Total number of pixel corrections applied before cropping",
		},
		[]string{"correction"}, // "rotate90", "rotate180", "rotate270", "flip_h", "flip_v", "transpose", "transverse"
	)
)

// Batch metrics
var (
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_batch_runs_total",
			Help: "Total number of batch runs by outcome",
		},
		[]string{"status"}, // "success", "partial", "cancelled", "scan_error"
	)

	BatchRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_batch_running",
			Help: "Whether a batch run is in progress (1 = running, 0 = idle)",
		},
	)

	BatchLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_batch_last_run_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)

	BatchLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_batch_last_run_timestamp",
			Help: "Unix timestamp of the last completed batch run",
		},
	)

	BatchFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbsmith_batch_files",
			Help: "Number of files in the last batch run by status",
		},
		[]string{"status"}, // "processed", "failed", "skipped"
	)

	BatchFilesPerSecond = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_batch_files_per_second",
			Help: "Throughput of the last batch run in files per second",
		},
	)
)

// Worker pool metrics
var (
	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_worker_pool_size",
			Help: "Number of workers in the current batch",
		},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_workers_active",
			Help: "Number of workers currently transforming an image",
		},
	)

	WorkerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbsmith_worker_panics_total",
			Help: "Total number of recovered panics in thumbnail workers",
		},
	)
)

// Scanner metrics
var (
	ScannerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbsmith_scanner_duration_seconds",
			Help:    "Source directory scan duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ScannerFilesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbsmith_scanner_files_found_total",
			Help: "Total number of eligible image files found by the scanner",
		},
	)

	ScannerEntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_scanner_entries_skipped_total",
			Help: "Total number of directory entries skipped by the scanner",
		},
		[]string{"reason"}, // "directory", "info_error", "extension"
	)

	ScannerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbsmith_scanner_errors_total",
			Help: "Total number of directories that could not be listed",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors encountered",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsmith_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations including backoff",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_memory_usage_ratio",
			Help: "Heap memory usage as a ratio of the configured limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_memory_paused",
			Help: "Whether job dispatch is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbsmith_memory_gc_pauses_total",
			Help: "Total number of times processing paused for garbage collection",
		},
	)
)

// History metrics
var (
	HistoryQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_history_queries_total",
			Help: "Total number of run history queries",
		},
		[]string{"operation", "status"},
	)

	HistoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsmith_history_query_duration_seconds",
			Help:    "Run history query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// HTTP metrics for the exposition server
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsmith_http_requests_total",
			Help: "Total number of HTTP requests served by the metrics server",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsmith_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsmith_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbsmith_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
