package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scriptlock/internal/config"
	"github.com/roach88/scriptlock/internal/engine"
	"github.com/roach88/scriptlock/internal/record"
	"github.com/roach88/scriptlock/internal/store"
	"github.com/roach88/scriptlock/internal/testutil"
)

const helloScript = `print("hello from the worker script")`

func TestRunSingleWorkerGolden(t *testing.T) {
	scriptPath := writeScript(t, helloScript)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, _, err := execute(cmd, "--workers", "1", "--script", scriptPath, "--no-delay")
	require.NoError(t, err)

	newGolden(t).Assert(t, "run_single_worker", []byte(stdout))
}

func TestRunDefaultWorkerCount(t *testing.T) {
	scriptPath := writeScript(t, `count = (count or 0) + 1`)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, _, err := execute(cmd, "--script", scriptPath, "--no-delay")
	require.NoError(t, err)

	for k := 1; k <= record.DefaultWorkers; k++ {
		assert.Contains(t, stdout, fmt.Sprintf("launched worker #%d\n", k))
		assert.Contains(t, stdout, fmt.Sprintf("running script in worker #%d\n", k))
	}
	assert.Equal(t, record.DefaultWorkers, strings.Count(stdout, "shared checksum: "))
	assert.Contains(t, stdout, "shared checksum: 100\n")
	assert.True(t, strings.HasSuffix(stdout, "CHECKSUM OK\n"))
}

func TestRunJournal(t *testing.T) {
	scriptPath := writeScript(t, helloScript)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: engine.NewFixedGenerator("run-fixed"),
	}
	_, _, err := execute(newRunCommand(opts), "--workers", "6", "--script", scriptPath, "--db", dbPath, "--no-delay")
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.GetRun(ctx, "run-fixed")
	require.NoError(t, err)
	assert.Equal(t, record.StatusOK, run.Status)
	assert.Equal(t, int64(210), run.Checksum)
	assert.Equal(t, int64(210), run.ExpectedChecksum)
	assert.Equal(t, scriptPath, run.ScriptPath)

	execs, err := st.ReadExecutions(ctx, "run-fixed")
	require.NoError(t, err)
	require.Len(t, execs, 6)

	var prev int64
	for i, exec := range execs {
		assert.Equal(t, int64(i+1), exec.Seq)
		assert.Greater(t, exec.ChecksumAfter, prev, "checksum must grow with seq")
		assert.Equal(t, prev+exec.Contribution, exec.ChecksumAfter)
		prev = exec.ChecksumAfter
	}
	assert.Equal(t, run.Checksum, prev)
}

func TestRunScriptErrorContinues(t *testing.T) {
	scriptPath := writeScript(t, `error("boom")`)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, stderr, err := execute(cmd, "--workers", "3", "--script", scriptPath, "--no-delay")
	require.NoError(t, err)

	assert.Contains(t, stdout, "shared checksum: 60\n")
	assert.Contains(t, stdout, "CHECKSUM OK")
	assert.Equal(t, 3, strings.Count(stderr, `msg="script raised exception"`))
	assert.Contains(t, stderr, "boom")
}

func TestRunMissingScriptContinues(t *testing.T) {
	scriptPath := filepath.Join(t.TempDir(), "missing.lua")

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, stderr, err := execute(cmd, "--workers", "2", "--script", scriptPath, "--no-delay")
	require.NoError(t, err)

	assert.Contains(t, stdout, "CHECKSUM OK")
	assert.Contains(t, stderr, "script raised exception")
}

func TestRunJSONFormat(t *testing.T) {
	scriptPath := writeScript(t, helloScript)

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		RunIDGenerator: testutil.NewFixedRunIDGenerator("run-json"),
	}
	stdout, stderr, err := execute(newRunCommand(opts), "--workers", "2", "--script", scriptPath, "--no-delay")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-json", resp.Data.RunID)
	assert.Equal(t, int64(30), resp.Data.Checksum)
	assert.Equal(t, int64(30), resp.Data.Expected)
	assert.Equal(t, record.StatusOK, resp.Data.Status)
	assert.Len(t, resp.Data.Executions, 2)

	// Progress stays off stdout so the document parses.
	assert.Contains(t, stderr, "launched worker #1")
	assert.Contains(t, stderr, "hello from the worker script")
	assert.NotContains(t, stdout, "CHECKSUM OK")
}

func TestRunYAMLFormat(t *testing.T) {
	scriptPath := writeScript(t, helloScript)

	cmd := NewRunCommand(&RootOptions{Format: "yaml"})
	stdout, _, err := execute(cmd, "--workers", "3", "--script", scriptPath, "--no-delay")
	require.NoError(t, err)

	var resp struct {
		Status string     `yaml:"status"`
		Data   RunSummary `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(60), resp.Data.Checksum)
	assert.Equal(t, 3, resp.Data.Workers)
}

func TestRunCancelledContextIsWorkerFailure(t *testing.T) {
	scriptPath := writeScript(t, helloScript)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: engine.NewFixedGenerator("run-aborted"),
	}
	cmd := newRunCommand(opts)
	cmd.SetContext(ctx)
	stdout, _, err := execute(cmd, "--workers", "2", "--script", scriptPath, "--db", dbPath, "--no-delay")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "worker failed")
	assert.True(t, engine.IsWorkerError(err))
	assert.NotContains(t, stdout, "CHECKSUM")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.GetRun(context.Background(), "run-aborted")
	require.NoError(t, err)
	assert.Equal(t, record.StatusAborted, run.Status)
}

func TestRunConfigFile(t *testing.T) {
	scriptPath := writeScript(t, helloScript)
	cfgPath := filepath.Join(t.TempDir(), "scriptlock.cue")
	cfg := fmt.Sprintf(`workers: 2
script: %q
max_work_delay: "0s"
max_locked_delay: "0s"
`, scriptPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, _, err := execute(cmd, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "shared checksum: 30\n")
	assert.Contains(t, stdout, "CHECKSUM OK")
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	scriptPath := writeScript(t, helloScript)
	cfgPath := filepath.Join(t.TempDir(), "scriptlock.cue")
	cfg := fmt.Sprintf("workers: 2\nscript: %q\n", scriptPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, _, err := execute(cmd, "--config", cfgPath, "--workers", "3", "--no-delay")
	require.NoError(t, err)
	assert.Contains(t, stdout, "shared checksum: 60\n")
	assert.NotContains(t, stdout, "launched worker #4")
}

func TestRunInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "scriptlock.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workers: 0\n"), 0644))

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	_, _, err := execute(cmd, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunInvalidWorkersFlag(t *testing.T) {
	for _, workers := range []string{"0", "-1", "4097"} {
		t.Run(workers, func(t *testing.T) {
			cmd := NewRunCommand(&RootOptions{Format: "text"})
			stdout, _, err := execute(cmd, "--workers", workers, "--no-delay")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), config.ErrCodeInvalidConfig)
			assert.NotContains(t, stdout, "launched worker", "no worker is spawned")
		})
	}
}

func TestRootRunsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.lua"), []byte(helloScript), 0644))
	// Picked up from the working directory; zero delays keep the test fast.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scriptlock.cue"), []byte(`max_work_delay: "0s"
max_locked_delay: "0s"
`), 0644))
	chdir(t, dir)

	stdout, _, err := execute(NewRootCommand())
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(stdout, "hello from the worker script"))
	assert.Contains(t, stdout, "shared checksum: 100\n")
	assert.Contains(t, stdout, "CHECKSUM OK")
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	stdout, _, err := execute(cmd, "--help")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Spawn the workers")
	assert.Contains(t, stdout, "--workers")
	assert.Contains(t, stdout, "--no-delay")
}
