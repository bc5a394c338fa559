package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainExecution prefixes execution identity hashes.
// The version suffix allows the algorithm to change later.
const DomainExecution = "scriptlock/execution/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ExecutionID computes the content-addressed ID of a worker execution.
// The same run, worker and seq always produce the same ID.
func ExecutionID(runID string, worker int, seq int64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"run_id": runID,
		"worker": worker,
		"seq":    seq,
	})
	if err != nil {
		return "", fmt.Errorf("ExecutionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExecution, canonical), nil
}

// MustExecutionID is like ExecutionID but panics on error.
// Used by tests and fixtures whose inputs are known to be valid.
func MustExecutionID(runID string, worker int, seq int64) string {
	id, err := ExecutionID(runID, worker, seq)
	if err != nil {
		panic(err)
	}
	return id
}
