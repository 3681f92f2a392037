// Package database provides SQLite-based run history for safemac.
//
// The HistoryDB stores:
//   - malware check reports, one row per site per run, with the full report as JSON
//   - individual findings with their remediation outcome, for querying
//   - protection runs (lock/unlock), one row per site per run
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation to servers
// 3. Sufficient performance for our use case
//
// Quarantine and backup paths recorded here are how an operator finds their
// way back after a remediation, so findings are stored even when no action
// was taken.
package database
