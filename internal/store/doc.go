// Package store provides SQLite-backed durable storage for the scriptlock run journal.
//
// The journal is append-only:
//   - Runs: one row per pass of the worker pool, finished with its final checksum
//   - Executions: one row per worker pass through the critical section
//
// # Ordering
//
// Execution seq values come from the engine's logical clock and are taken while
// the critical-section lock is held. All execution reads use
// ORDER BY seq ASC, id ASC COLLATE BINARY so they replay the serialized order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Executions must reference an existing run
//
// Execution IDs are content-addressed via record.ExecutionID.
package store
