// Package testutil provides deterministic stand-ins for the sources of
// nondeterminism in a run: run IDs, random delays and sleeping.
//
// Nothing here imports the engine, so engine tests can use it too.
package testutil
