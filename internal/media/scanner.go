package media

import (
	"time"

	"thumbsmith/internal/filesystem"
	"thumbsmith/internal/logging"
	"thumbsmith/internal/metrics"
)

// Scan lists the names of the image files directly inside dir. Directories,
// entries whose info cannot be read and names without a supported extension
// are skipped. The order is whatever the directory listing returns.
func Scan(dir string) ([]string, error) {
	start := time.Now()
	defer func() {
		metrics.ScannerDuration.Observe(time.Since(start).Seconds())
	}()

	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	if err != nil {
		metrics.ScannerErrors.Inc()
		return nil, &ScanError{Dir: dir, Err: err}
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			logging.Debug("Scanner: skipping %s: %v", entry.Name(), err)
			metrics.ScannerEntriesSkipped.WithLabelValues("info_error").Inc()
			continue
		}

		if info.IsDir() {
			metrics.ScannerEntriesSkipped.WithLabelValues("directory").Inc()
			continue
		}

		if !IsSupportedExtension(entry.Name()) {
			metrics.ScannerEntriesSkipped.WithLabelValues("extension").Inc()
			continue
		}

		files = append(files, entry.Name())
	}

	metrics.ScannerFilesFound.Add(float64(len(files)))
	logging.Debug("Scanner: found %d image(s) among %d entries in %s", len(files), len(entries), dir)
	return files, nil
}
