// Command compress-history inspects the agent's history ledger.
//
// Usage:
//
//	compress-history list [-status success|failure] [-limit N]
//	compress-history stats
//	compress-history prune [-days N]
//
// The ledger is read from HISTORY_DB, or the platform default used by the
// agent. prune asks for confirmation when stdin is a terminal.
package main
