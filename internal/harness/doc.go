// Package harness runs conformance scenarios against the worker pool.
//
// A scenario is a YAML file naming a Lua script (inline or on disk), a
// worker count and a list of assertions. Run executes it through the real
// engine with an in-memory journal, a fixed run ID and a sleeper that
// records delays instead of waiting them out, so a scenario finishes in
// milliseconds whatever delays it asks for.
//
// Example scenario:
//
//	name: script_error_is_swallowed
//	description: a raising script still contributes to the checksum
//	workers: 4
//	script: |
//	  error("boom")
//	assertions:
//	  - type: checksum_ok
//	  - type: script_errors
//	    count: 4
//	  - type: serialized
//
// Which worker takes which seq depends on scheduling, so golden snapshots
// record executions by worker, not by seq. The seq order itself is covered
// by the serialized assertion.
package harness
