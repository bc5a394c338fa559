package harness

import (
	"cmp"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scriptlock/internal/record"
)

// Snapshot serializes the scheduling-independent part of a result as
// canonical JSON: run totals plus one entry per worker, ordered by worker.
// Script error text is reduced to a flag because it embeds the script path.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	events := slices.Clone(result.Trace)
	slices.SortFunc(events, func(a, b TraceEvent) int {
		return cmp.Compare(a.Worker, b.Worker)
	})

	executions := make([]any, len(events))
	for i, event := range events {
		entry := map[string]any{
			"worker":       event.Worker,
			"contribution": event.Contribution,
		}
		if event.ScriptError != "" {
			entry["raised"] = true
		}
		executions[i] = entry
	}

	return record.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"run_id":        result.RunID,
		"workers":       result.Workers,
		"checksum":      result.Checksum,
		"expected":      result.Expected,
		"script_errors": result.ScriptErrors,
		"status":        string(result.Status),
		"executions":    executions,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
