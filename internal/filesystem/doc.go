/*
Package filesystem wraps the handful of filesystem calls thumbsmith makes
(stat, open, readdir, write) with retry logic for NFS stale file handle
errors (ESTALE). Source and destination directories are frequently network
mounts, and a stale handle in the middle of a batch should cost a retry,
not a failed thumbnail.

# Usage

	cfg := filesystem.DefaultRetryConfig()

	f, err := filesystem.OpenWithRetry(src, cfg)
	entries, err := filesystem.ReadDirWithRetry(dir, cfg)
	err = filesystem.WriteFileAtomic(dst, data, 0o644, cfg)

# Retry Behavior

Only ESTALE triggers a retry. Backoff starts at InitialBackoff (50ms),
doubles per attempt and is capped at MaxBackoff (500ms); MaxRetries (3)
bounds the number of retries. Every other error is returned immediately.

WriteFileAtomic writes to a hidden temporary file in the destination
directory and renames it over the target, so an existing thumbnail is
replaced in one step.

# Metrics

Retry outcomes are reported to an Observer installed with SetObserver
(metrics.NewFilesystemObserver in production). Paths are labelled with the
volume names registered through SetDefaultVolumeResolver ("source",
"dest").
*/
package filesystem
