// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// The positional arguments (width, height, source dir, dest dir) are
// validated by [LoadConfig]. Optional settings come from command line flags
// registered by [RegisterFlags], from THUMBSMITH_* environment variables and
// from an optional YAML file given with --config, in that order of
// precedence:
//
//   - --workers / THUMBSMITH_WORKERS: worker pool size (0 = auto)
//   - --orientation / THUMBSMITH_ORIENTATION: rotate (default), full or none
//   - --decoder / THUMBSMITH_DECODER: imaging (default) or vips
//   - --quality / THUMBSMITH_QUALITY: JPEG quality, 1-100 (default 90)
//   - --metrics-addr / THUMBSMITH_METRICS_ADDR: Prometheus listen address
//   - --history / THUMBSMITH_HISTORY: SQLite run history file
//   - --log-level / THUMBSMITH_LOG_LEVEL: overrides LOG_LEVEL
//
// MEMORY_LIMIT, MEMORY_RATIO and GOMEMLIMIT are read by the memory package.
//
// A rejected configuration is reported as a [*ConfigError] whose message is
// meant to be shown to the user as is.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// [PrintBanner], [LogSystemInfo], [LogConfig], [LogMemoryConfig] and
// [LogBatchSummary] print the sections of a run in a consistent format.
package startup
