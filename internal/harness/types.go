package harness

import (
	"time"

	"github.com/roach88/scriptlock/internal/record"
)

// TraceEvent is one pass through the critical section, as journaled.
type TraceEvent struct {
	Seq           int64  `json:"seq"`
	Worker        int    `json:"worker"`
	Contribution  int64  `json:"contribution"`
	ChecksumAfter int64  `json:"checksum_after"`
	ScriptError   string `json:"script_error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	RunID        string           `json:"run_id"`
	Workers      int              `json:"workers"`
	Checksum     int64            `json:"checksum"`
	Expected     int64            `json:"expected"`
	ScriptErrors int              `json:"script_errors"`
	Status       record.RunStatus `json:"status"`

	// Trace contains the journaled executions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Output is everything the workers and the script printed.
	Output string `json:"-"`

	// Delays lists every delay the workers asked for, in call order.
	Delays []time.Duration `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a journaled execution to the trace.
func (r *Result) AddTrace(exec record.Execution) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:           exec.Seq,
		Worker:        exec.Worker,
		Contribution:  exec.Contribution,
		ChecksumAfter: exec.ChecksumAfter,
		ScriptError:   exec.ScriptError,
	})
}
