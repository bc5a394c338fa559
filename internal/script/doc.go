// Package script wraps the embedded Lua interpreter used by scriptlock.
//
// The wrapper keeps the interpreter's native lifecycle visible:
//
//	Setup         create the VM, open libraries, initialize the load path
//	LoadProtected run a script file, capturing any raised error
//	ErrInfo       fetch and clear the pending script error
//	Cleanup       close the VM
//
// THREAD-SAFETY: an Engine is NOT safe for concurrent use. The underlying
// *lua.LState must only ever be entered by one goroutine at a time. Callers
// are expected to serialize every call through a single lock; an Engine that
// detects overlapping entry panics rather than corrupting interpreter state.
package script
