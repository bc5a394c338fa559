package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptlock/internal/record"
	"github.com/roach88/scriptlock/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ShowResult is the structured output of the show command.
type ShowResult struct {
	Run        record.Run         `json:"run" yaml:"run"`
	Executions []record.Execution `json:"executions" yaml:"executions"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the executions of one run in serialized order",
		Long: `Show one journaled run and every pass through the critical section,
ordered by the logical sequence number taken while the lock was held.

Example:
  scriptlock show --db ./runs.db 0190a5e2-7c3b-7def-8a12-3456789abcde`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RunID = args[0]
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitFailure, fmt.Sprintf("run %s not found", opts.RunID), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	execs, err := st.ReadExecutions(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read executions", err)
	}

	if formatter.Structured() {
		return formatter.Success(ShowResult{Run: run, Executions: execs})
	}

	writeShowText(cmd.OutOrStdout(), run, execs)
	return nil
}

// writeShowText renders a run header followed by its executions.
func writeShowText(w io.Writer, run record.Run, execs []record.Execution) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Script:   %s\n", run.ScriptPath)
	fmt.Fprintf(w, "Workers:  %d\n", run.Workers)
	fmt.Fprintf(w, "Checksum: %d (expected %d)\n", run.Checksum, run.ExpectedChecksum)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintln(w)

	if len(execs) == 0 {
		fmt.Fprintln(w, "No executions recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tWORKER\tADDED\tCHECKSUM\tSCRIPT ERROR")
	for _, exec := range execs {
		scriptErr := exec.ScriptError
		if scriptErr == "" {
			scriptErr = "-"
		}
		fmt.Fprintf(tw, "%d\t#%d\t%d\t%d\t%s\n",
			exec.Seq, exec.Worker, exec.Contribution, exec.ChecksumAfter, scriptErr)
	}
	tw.Flush()
}
