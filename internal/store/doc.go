// Package store provides the persistence collaborators for huddle.
//
// Two backends satisfy both schedule.Repository and availability.Repository:
//   - SQLite: durable storage via mattn/go-sqlite3
//   - Memory: map-backed storage for tests and ephemeral runs
//
// # Write-time guarantees
//
// Both backends re-check assignee overlap inside the write itself (a
// transaction for SQLite, the store mutex for Memory) and compare-and-swap
// on event version. The event store's per-organization lock already
// prevents these races in-process; the backend check closes them across
// processes sharing one database file.
//
// Cache records are replaced as a whole: one UPSERT of a row that carries
// the complete busy list as canonical JSON, so a reader never sees a mix of
// old and new intervals.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cascade assignee rows on event delete
//   - _txlock=immediate: Writers take the write lock at BEGIN
//
// Times are stored as Unix nanoseconds (UTC).
package store
