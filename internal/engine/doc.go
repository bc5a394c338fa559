// Package engine runs a fixed pool of workers against one embedded script engine.
//
// ARCHITECTURE:
//
// The interpreter behind script.Engine must never be entered by two goroutines
// at once. The engine therefore owns a single Critical section: the lock, the
// interpreter and the shared checksum live together, and workers only ever get
// a handle to the section, never to the interpreter itself.
//
// Worker lifecycle:
// 1. Run() spawns N workers and announces each one
// 2. Each worker sleeps a random delay outside the lock
// 3. The worker enters the critical section, sleeps a second random delay,
//    runs the script in protected mode and adds its contribution
// 4. A logical seq is taken before leaving the section
// 5. After the lock is released the execution is journaled (if a journal is set)
// 6. Run() joins every worker unconditionally and reports the final checksum
//
// A script error is logged and swallowed; the contribution is added anyway.
// A worker that panics or whose delay is interrupted is a join failure and the
// whole run is reported as aborted.
//
// INVARIANT: for N workers the final checksum is 5*N*(N+1) regardless of the
// order in which workers enter the critical section.
package engine
