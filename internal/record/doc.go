// Package record defines the journal types written for every scriptlock run.
//
// A Run describes one invocation of the worker pool; an Execution describes a
// single worker's pass through the critical section. Executions carry the
// logical seq assigned while the lock was held, so ordering by seq reproduces
// the exact serialized order in which workers entered the script engine.
//
// This package imports nothing internal. store, engine and cli all build on it.
package record
