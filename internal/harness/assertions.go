package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/scriptlock/internal/record"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, assertion := range assertions {
		if err := evaluateAssertion(result, assertion); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s) failed: %v", i, assertion.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, assertion Assertion) error {
	switch assertion.Type {
	case AssertChecksumOK:
		return assertChecksum(result, record.ExpectedChecksum(result.Workers))
	case AssertChecksum:
		return assertChecksum(result, *assertion.Value)
	case AssertScriptErrors:
		return assertScriptErrors(result, *assertion.Count)
	case AssertOutputContains:
		return assertOutputContains(result, assertion.Text)
	case AssertOutputCount:
		return assertOutputCount(result, assertion.Text, *assertion.Count)
	case AssertSerialized:
		return assertSerialized(result)
	default:
		return fmt.Errorf("unknown assertion type: %s", assertion.Type)
	}
}

func assertChecksum(result *Result, want int64) error {
	if result.Checksum != want {
		return &AssertionError{
			Type:     AssertChecksum,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", result.Checksum),
		}
	}
	return nil
}

// assertScriptErrors checks both the run counter and the per-execution records.
func assertScriptErrors(result *Result, want int) error {
	raised := 0
	for _, event := range result.Trace {
		if event.ScriptError != "" {
			raised++
		}
	}
	if result.ScriptErrors != want || raised != want {
		return &AssertionError{
			Type:     AssertScriptErrors,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d (journaled executions: %d)", result.ScriptErrors, raised),
		}
	}
	return nil
}

func assertOutputContains(result *Result, text string) error {
	if !strings.Contains(result.Output, text) {
		return &AssertionError{
			Type:     AssertOutputContains,
			Expected: fmt.Sprintf("output containing %q", text),
			Actual:   fmt.Sprintf("%q", result.Output),
		}
	}
	return nil
}

func assertOutputCount(result *Result, text string, want int) error {
	if got := strings.Count(result.Output, text); got != want {
		return &AssertionError{
			Type:     AssertOutputCount,
			Expected: fmt.Sprintf("%d occurrences of %q", want, text),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertSerialized checks that the journal reads as one serialized history:
// seqs are 1..N, each worker appears once, and every checksum is the
// previous one plus that worker's contribution.
func assertSerialized(result *Result) error {
	if len(result.Trace) != result.Workers {
		return &AssertionError{
			Type:     AssertSerialized,
			Expected: fmt.Sprintf("%d executions", result.Workers),
			Actual:   fmt.Sprintf("%d", len(result.Trace)),
		}
	}

	seen := make(map[int]bool, len(result.Trace))
	var prev int64
	for i, event := range result.Trace {
		if event.Seq != int64(i+1) {
			return &AssertionError{
				Type:     AssertSerialized,
				Expected: fmt.Sprintf("seq %d at position %d", i+1, i),
				Actual:   fmt.Sprintf("seq %d", event.Seq),
			}
		}
		if seen[event.Worker] {
			return &AssertionError{
				Type:     AssertSerialized,
				Expected: "each worker once",
				Actual:   fmt.Sprintf("worker %d twice", event.Worker),
			}
		}
		seen[event.Worker] = true

		if event.Contribution != record.Contribution(event.Worker-1) {
			return &AssertionError{
				Type:     AssertSerialized,
				Expected: fmt.Sprintf("worker %d to add %d", event.Worker, record.Contribution(event.Worker-1)),
				Actual:   fmt.Sprintf("%d", event.Contribution),
			}
		}
		if event.ChecksumAfter != prev+event.Contribution {
			return &AssertionError{
				Type:     AssertSerialized,
				Expected: fmt.Sprintf("checksum %d after seq %d", prev+event.Contribution, event.Seq),
				Actual:   fmt.Sprintf("%d", event.ChecksumAfter),
			}
		}
		prev = event.ChecksumAfter
	}

	if prev != result.Checksum {
		return &AssertionError{
			Type:     AssertSerialized,
			Expected: fmt.Sprintf("last journaled checksum %d to be final", prev),
			Actual:   fmt.Sprintf("%d", result.Checksum),
		}
	}
	return nil
}
