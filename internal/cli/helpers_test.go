package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scriptlock/internal/record"
	"github.com/roach88/scriptlock/internal/store"
)

// newGolden returns a goldie instance reading testdata/golden/*.golden.
// Regenerate with: go test ./internal/cli/... -update
func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// writeScript writes a Lua script into a temp dir and returns its path.
func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// execute runs cmd with args and returns stdout and stderr separately.
func execute(cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// seedJournal writes two finished runs, the second one with executions,
// and returns the database path.
// emptyJournal creates a journal with no runs and returns its path.
func emptyJournal(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return dbPath
}

func seedJournal(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, run := range []record.Run{
		{ID: "run-0001", Workers: 4, ScriptPath: "./test.lua", ExpectedChecksum: 100, Checksum: 100, Status: record.StatusOK, EngineVersion: record.EngineVersion},
		{ID: "run-0002", Workers: 2, ScriptPath: "./test.lua", ExpectedChecksum: 30, Checksum: 30, Status: record.StatusOK, ScriptErrors: 1, EngineVersion: record.EngineVersion},
	} {
		require.NoError(t, st.WriteRun(ctx, run))
	}

	for _, exec := range []record.Execution{
		{RunID: "run-0002", Worker: 2, Seq: 1, Contribution: 20, ChecksumAfter: 20, ScriptError: "test.lua:1: boom"},
		{RunID: "run-0002", Worker: 1, Seq: 2, Contribution: 10, ChecksumAfter: 30},
	} {
		exec.ID = record.MustExecutionID(exec.RunID, exec.Worker, exec.Seq)
		require.NoError(t, st.WriteExecution(ctx, exec))
	}

	return dbPath
}
