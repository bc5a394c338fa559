package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/scriptlock/internal/engine"
	"github.com/roach88/scriptlock/internal/script"
	"github.com/roach88/scriptlock/internal/store"
	"github.com/roach88/scriptlock/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Materialize the script (inline scripts go to a temp dir)
// 2. Set up the script engine and an in-memory journal
// 3. Run the worker pool with recorded delays and a fixed run ID
// 4. Read the run back from the journal
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), scenario.timeout())
	defer cancel()

	scriptPath := scenario.ScriptFile
	if scenario.Script != "" {
		dir, err := os.MkdirTemp("", "scriptlock-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create script dir: %w", err)
		}
		defer os.RemoveAll(dir)

		scriptPath = filepath.Join(dir, "scenario.lua")
		if err := os.WriteFile(scriptPath, []byte(scenario.Script), 0644); err != nil {
			return nil, fmt.Errorf("failed to write script: %w", err)
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	out := &bytes.Buffer{}
	progress := engine.NewSyncWriter(out)

	vm, err := script.Setup(script.Options{
		Stdout:   progress,
		LoadPath: []string{filepath.Dir(scriptPath)},
	})
	if err != nil {
		return nil, engine.NewSetupError(err)
	}
	defer func() {
		if cleanupErr := vm.Cleanup(); cleanupErr != nil {
			slog.Error("engine cleanup failed", "scenario", scenario.Name, "error", cleanupErr)
		}
	}()

	jitter := testutil.ZeroJitter
	if scenario.Delays == DelaysMax {
		jitter = testutil.MaxJitter
	}
	sleeper := testutil.NewRecordingSleeper()

	eng := engine.New(vm, engine.Config{
		Workers:        scenario.Workers,
		ScriptPath:     scriptPath,
		MaxWorkDelay:   engine.DefaultMaxWorkDelay,
		MaxLockedDelay: engine.DefaultMaxLockedDelay,
	},
		engine.WithOutput(progress),
		engine.WithJournal(st),
		engine.WithSleeper(sleeper.Sleep),
		engine.WithJitter(jitter),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
	)

	runResult, err := eng.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	run, err := st.GetRun(ctx, runResult.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journaled run: %w", err)
	}
	execs, err := st.ReadExecutions(ctx, runResult.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journaled executions: %w", err)
	}

	result := NewResult()
	result.RunID = run.ID
	result.Workers = run.Workers
	result.Checksum = run.Checksum
	result.Expected = run.ExpectedChecksum
	result.ScriptErrors = run.ScriptErrors
	result.Status = run.Status
	for _, exec := range execs {
		result.AddTrace(exec)
	}
	result.Output = out.String()
	result.Delays = sleeper.Delays()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}
