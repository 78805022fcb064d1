// Package repositories implements SQLite persistence for download session history.
//
// [SessionRepository] stores one row per finished run plus its per-item final state, with
// soft deletes via deleted_at timestamps. Deleted sessions are excluded from queries by default.
//
// Key Implementations:
//   - [SessionRepository] : Session history with outcome-based queries
//   - [HistoryAdapter] : Bridges the reconciler's recorder hook to the repository
//
// Sequence numbers provide stable, human-readable ordering (e.g., session #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
