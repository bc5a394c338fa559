package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptlock/internal/script"
)

// InitScriptOptions holds flags for the init-script command.
type InitScriptOptions struct {
	*RootOptions
	Force bool
}

// NewInitScriptCommand creates the init-script command.
func NewInitScriptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitScriptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init-script [path]",
		Short: "Write the default worker script",
		Long: `Write the bundled factorial script that every worker runs by default.
The path defaults to ./test.lua. Existing files are kept unless --force is set.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := script.DefaultScriptPath
			if len(args) == 1 {
				path = args[0]
			}
			return runInitScript(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing file")

	return cmd
}

func runInitScript(opts *InitScriptOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if errors.Is(err, os.ErrExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create script", err)
	}
	if _, err := f.WriteString(script.DefaultScript); err != nil {
		f.Close()
		return WrapExitError(ExitCommandError, "failed to write script", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write script", err)
	}

	if formatter.Structured() {
		return formatter.Success(map[string]string{"path": path})
	}
	return formatter.Success(fmt.Sprintf("Wrote %s", path))
}
