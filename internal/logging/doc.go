// Package logging provides the leveled logger used throughout thumbsmith.
//
// It supports the following log levels:
//   - DEBUG: per-file pipeline details (orientation, crop rectangles)
//   - INFO: batch progress and startup configuration
//   - WARN: recoverable problems such as decoder fallbacks
//   - ERROR: failed thumbnail jobs
//   - FATAL: configuration errors that terminate the process
//
// The initial level comes from the DEBUG or LOG_LEVEL environment
// variables and can be changed at runtime with SetLevel (the CLI does so
// for --log-level).
package logging
