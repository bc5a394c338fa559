package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptlock/internal/config"
	"github.com/roach88/scriptlock/internal/engine"
	"github.com/roach88/scriptlock/internal/record"
	"github.com/roach88/scriptlock/internal/script"
	"github.com/roach88/scriptlock/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Workers    int
	Script     string
	Database   string
	NoDelay    bool

	// RunIDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunSummary is the structured result of the run command.
type RunSummary struct {
	RunID        string             `json:"run_id" yaml:"run_id"`
	Workers      int                `json:"workers" yaml:"workers"`
	Script       string             `json:"script" yaml:"script"`
	Checksum     int64              `json:"checksum" yaml:"checksum"`
	Expected     int64              `json:"expected" yaml:"expected"`
	ScriptErrors int                `json:"script_errors" yaml:"script_errors"`
	Status       record.RunStatus   `json:"status" yaml:"status"`
	Executions   []record.Execution `json:"executions" yaml:"executions"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker pool once and verify the checksum",
		Long: `Spawn the workers, let each of them run the script inside the critical
section, join them all and compare the shared checksum with 5*N*(N+1).

Settings come from the CUE file named by --config (or ./scriptlock.cue when it
exists). Flags override the file.

Example:
  scriptlock run
  scriptlock run --workers 16 --script ./test.lua --no-delay
  scriptlock run --config scriptlock.cue --db ./runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "n", record.DefaultWorkers, "number of workers")
	cmd.Flags().StringVar(&opts.Script, "script", script.DefaultScriptPath, "Lua script run by every worker")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run journal (optional)")
	cmd.Flags().BoolVar(&opts.NoDelay, "no-delay", false, "skip the random delays")

	return cmd
}

// resolveConfig loads the config file and applies flag overrides.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("script") {
		cfg.Script = opts.Script
	}
	if flags.Changed("db") {
		cfg.DB = opts.Database
	}
	if opts.NoDelay {
		cfg.MaxWorkDelay = 0
		cfg.MaxLockedDelay = 0
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// configureLogging installs a text handler on w at level, or Debug when verbose.
func configureLogging(w io.Writer, level slog.Level, verbose bool) {
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func runScript(opts *RunOptions, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), slog.LevelInfo, opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Progress lines and script prints share one writer. Structured formats
	// keep stdout for the result document.
	var progress io.Writer = cmd.OutOrStdout()
	if formatter.Structured() {
		progress = cmd.ErrOrStderr()
	}
	progress = engine.NewSyncWriter(progress)

	vm, err := script.Setup(script.Options{
		Stdout:   progress,
		LoadPath: append([]string{filepath.Dir(cfg.Script)}, cfg.LoadPath...),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "engine setup failed", engine.NewSetupError(err))
	}
	defer func() {
		if cleanupErr := vm.Cleanup(); cleanupErr != nil {
			slog.Error("engine cleanup failed", "error", cleanupErr)
		}
	}()

	engineOpts := []engine.EngineOption{engine.WithOutput(progress)}
	if opts.RunIDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDGenerator))
	}

	if cfg.DB != "" {
		slog.Debug("opening journal", "path", cfg.DB)
		st, err := store.Open(cfg.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(st))
	}

	eng := engine.New(vm, engine.Config{
		Workers:        cfg.Workers,
		ScriptPath:     cfg.Script,
		MaxWorkDelay:   cfg.MaxWorkDelay,
		MaxLockedDelay: cfg.MaxLockedDelay,
	}, engineOpts...)

	// Setup signal handling: a signal cancels pending delays and aborts the run.
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	result, err := eng.Run(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "worker failed", err)
	}
	slog.Debug("run finished", "run_id", result.RunID, "elapsed", time.Since(start))

	if formatter.Structured() {
		if err := formatter.Success(RunSummary{
			RunID:        result.RunID,
			Workers:      result.Workers,
			Script:       cfg.Script,
			Checksum:     result.Checksum,
			Expected:     result.Expected,
			ScriptErrors: result.ScriptErrors,
			Status:       result.Status(),
			Executions:   result.Executions,
		}); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if err := result.Verify(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "CHECKSUM FAILED")
		return WrapExitError(ExitFailure, "checksum mismatch", err)
	}
	if !formatter.Structured() {
		fmt.Fprintln(cmd.OutOrStdout(), "CHECKSUM OK")
	}
	return nil
}
