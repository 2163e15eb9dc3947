// Package batch thumbnails a whole directory with a bounded worker pool.
//
// ProcessDirectory scans the source directory once, then feeds one job per
// eligible file to a fixed number of workers. A single collector goroutine
// gathers results into a Report and forwards each one to the configured
// Observers, so observers need no locking of their own.
//
// Failures are isolated per file. The call itself only fails when the source
// directory cannot be listed; everything else ends up in Report.Failures and
// is summarized by Report.Err. Cancelling the context stops dispatch, lets
// running jobs finish and lists the remainder in Report.Skipped.
package batch
