// Package history keeps an optional SQLite ledger of batch runs.
//
// Each run gets a row in the runs table, keyed by the batch run ID, and one
// job_results row per file with its status, orientation and duration. The
// database is opened in WAL mode. A Recorder plugs the ledger into a batch as
// an observer; failures to write it are logged and never fail the batch.
package history
