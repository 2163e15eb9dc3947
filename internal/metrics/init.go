package metrics

import "strconv"

// Label values that are pre-populated so every series exists from the first
// scrape.
var (
	thumbnailStatuses  = []string{"success", "decode_error", "encode_error", "write_error", "panic", "error"}
	thumbnailPhases    = []string{"decode", "orient", "crop", "resize", "encode", "write"}
	decodeFormats      = []string{"jpeg", "png", "gif", "unknown"}
	orientationReasons = []string{"open", "no_exif", "corrupt", "out_of_range"}
	corrections        = []string{"rotate90", "rotate180", "rotate270", "flip_h", "flip_v", "transpose", "transverse"}
	batchStatuses      = []string{"success", "partial", "cancelled", "scan_error"}
	batchFileStatuses  = []string{"processed", "failed", "skipped"}
	scannerSkipReasons = []string{"directory", "info_error", "extension"}
	volumes            = []string{"source", "dest", "unknown"}
	retryOps           = []string{"stat", "open", "readdir", "write"}
	historyOps         = []string{"initialize_schema", "begin_run", "record_result", "finish_run", "list_runs", "run_results"}
	httpPaths          = []string{"/metrics", "/healthz", "/health", "other"}
)

// InitializeMetrics pre-populates all expected label combinations.
// Call this once at startup.
func InitializeMetrics() {
	for _, s := range thumbnailStatuses {
		ThumbnailsTotal.WithLabelValues(s)
	}
	for _, p := range thumbnailPhases {
		ThumbnailPhaseDuration.WithLabelValues(p)
	}
	for _, f := range decodeFormats {
		ThumbnailDecodeByFormat.WithLabelValues(f)
	}

	for o := 1; o <= 8; o++ {
		OrientationResolved.WithLabelValues(strconv.Itoa(o))
	}
	for _, r := range orientationReasons {
		OrientationReadFailures.WithLabelValues(r)
	}
	for _, c := range corrections {
		OrientationCorrections.WithLabelValues(c)
	}

	for _, s := range batchStatuses {
		BatchRunsTotal.WithLabelValues(s)
	}
	for _, s := range batchFileStatuses {
		BatchFiles.WithLabelValues(s)
	}
	for _, r := range scannerSkipReasons {
		ScannerEntriesSkipped.WithLabelValues(r)
	}

	for _, op := range retryOps {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range historyOps {
		HistoryQueriesTotal.WithLabelValues(op, "success")
		HistoryQueriesTotal.WithLabelValues(op, "error")
		HistoryQueryDuration.WithLabelValues(op)
	}

	for _, path := range httpPaths {
		HTTPRequestDuration.WithLabelValues("GET", path)
	}
}
