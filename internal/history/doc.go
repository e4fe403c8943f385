// Package history keeps a SQLite ledger of finished compressions.
//
// Every job that reaches HandBrakeCLI produces one [Record], whether it
// succeeded or failed, together with what happened to the original
// (trashed, permission denied, error, or left in place). The ledger feeds the
// /api/history endpoint and the compress-history command.
//
// The ledger is append-only from the agent's point of view. It is never used
// to resume or retry work: a file that failed is retried only when it
// produces a new filesystem event.
//
// The database runs in WAL mode with a busy timeout so the CLI can read it
// while the agent is writing.
package history
