package record

// DefaultWorkers is the fixed pool size used when nothing else is configured.
const DefaultWorkers = 4

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	// StatusRunning marks a run whose workers have not all been joined yet.
	StatusRunning RunStatus = "running"

	// StatusOK marks a run whose final checksum matched the expected value.
	StatusOK RunStatus = "ok"

	// StatusMismatch marks a run whose final checksum differed from the expected value.
	StatusMismatch RunStatus = "mismatch"

	// StatusAborted marks a run stopped by a setup or worker failure.
	StatusAborted RunStatus = "aborted"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusOK, StatusMismatch, StatusAborted:
		return true
	}
	return false
}

// Run is the journal record for one pass of the worker pool.
type Run struct {
	ID               string    `json:"id" yaml:"id"`
	Workers          int       `json:"workers" yaml:"workers"`
	ScriptPath       string    `json:"script_path" yaml:"script_path"`
	ExpectedChecksum int64     `json:"expected_checksum" yaml:"expected_checksum"`
	Checksum         int64     `json:"checksum" yaml:"checksum"`
	Status           RunStatus `json:"status" yaml:"status"`
	ScriptErrors     int       `json:"script_errors" yaml:"script_errors"`
	EngineVersion    string    `json:"engine_version" yaml:"engine_version"`
}

// Execution is the journal record for one worker's pass through the critical section.
//
// Seq is taken while the lock is held, so it is also the serialization order.
// ScriptError is empty when the script ran cleanly.
type Execution struct {
	ID            string `json:"id" yaml:"id"`
	RunID         string `json:"run_id" yaml:"run_id"`
	Worker        int    `json:"worker" yaml:"worker"`
	Seq           int64  `json:"seq" yaml:"seq"`
	Contribution  int64  `json:"contribution" yaml:"contribution"`
	ChecksumAfter int64  `json:"checksum_after" yaml:"checksum_after"`
	ScriptError   string `json:"script_error,omitempty" yaml:"script_error,omitempty"`
}

// Contribution returns what the worker with zero-based index i adds to the checksum.
func Contribution(i int) int64 {
	return int64(i+1) * 10
}

// ExpectedChecksum is the closed-form sum of Contribution over n workers:
// 10 * (1 + 2 + ... + n) = 5 * n * (n+1).
func ExpectedChecksum(n int) int64 {
	return int64(n+1) * 5 * int64(n)
}
