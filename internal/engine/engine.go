package engine

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/scriptlock/internal/record"
	"github.com/roach88/scriptlock/internal/script"
)

// Default delays: 1s before the lock, 500ms inside it.
const (
	DefaultMaxWorkDelay   = time.Second
	DefaultMaxLockedDelay = 500 * time.Millisecond
)

// Journal records runs and executions. Implemented by *store.Store.
type Journal interface {
	WriteRun(ctx context.Context, run record.Run) error
	FinishRun(ctx context.Context, runID string, checksum int64, status record.RunStatus, scriptErrors int) error
	WriteExecution(ctx context.Context, exec record.Execution) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config describes one pool of workers.
type Config struct {
	Workers        int
	ScriptPath     string
	MaxWorkDelay   time.Duration
	MaxLockedDelay time.Duration
}

// Engine runs the worker pool against a single critical section.
//
// Thread-safety model:
//   - Run(): one call at a time; it owns the workers it spawns
//   - the script engine is only ever entered through Critical.Enter
type Engine struct {
	cfg     Config
	section *Critical
	journal Journal
	ids     RunIDGenerator
	out     io.Writer
	sleep   Sleeper
	jitter  func(n int64) int64
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithJournal records every run and execution in j.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithOutput sets where progress lines are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.out = NewSyncWriter(w)
	}
}

// WithRunIDGenerator overrides the UUIDv7 run ID generator (for testing).
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithSleeper overrides how delays are waited out (for testing).
func WithSleeper(s Sleeper) EngineOption {
	return func(e *Engine) {
		e.sleep = s
	}
}

// WithJitter overrides the random source for delays. jitter(n) must return
// a value in [0, n) and must be safe for concurrent use.
func WithJitter(jitter func(n int64) int64) EngineOption {
	return func(e *Engine) {
		e.jitter = jitter
	}
}

// New creates an Engine that runs cfg.Workers workers against vm.
// The engine takes ownership of vm for the duration of Run; the caller
// remains responsible for vm.Cleanup afterwards.
func New(vm *script.Engine, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:     cfg,
		section: NewCritical(vm),
		ids:     UUIDv7Generator{},
		out:     NewSyncWriter(os.Stdout),
		sleep:   sleepContext,
		jitter:  rand.Int63n,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RunResult summarizes one pass of the worker pool.
type RunResult struct {
	RunID        string
	Workers      int
	Checksum     int64
	Expected     int64
	ScriptErrors int

	// Executions lists completed executions in serialized (seq) order.
	Executions []record.Execution
}

// OK reports whether the final checksum matched the closed form.
func (r *RunResult) OK() bool {
	return r.Checksum == r.Expected
}

// Verify returns a checksum mismatch error when the run is not OK.
func (r *RunResult) Verify() error {
	if r.OK() {
		return nil
	}
	return NewChecksumError(r.RunID, r.Checksum, r.Expected)
}

// Status maps the result to a journal status.
func (r *RunResult) Status() record.RunStatus {
	if r.OK() {
		return record.StatusOK
	}
	return record.StatusMismatch
}

// Run spawns the workers, joins all of them and returns the result.
//
// Join is unconditional: Run waits for every worker even after one fails.
// If any worker failed, the returned error is a worker error and the result
// still reports whatever the surviving workers contributed.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	n := e.cfg.Workers
	runID := e.ids.Generate()
	clock := NewClock()

	result := &RunResult{
		RunID:    runID,
		Workers:  n,
		Expected: record.ExpectedChecksum(n),
	}

	// Journal writes outlive cancellation so an aborted run is still recorded.
	journalCtx := context.WithoutCancel(ctx)
	if e.journal != nil {
		err := e.journal.WriteRun(journalCtx, record.Run{
			ID:               runID,
			Workers:          n,
			ScriptPath:       e.cfg.ScriptPath,
			ExpectedChecksum: result.Expected,
			Status:           record.StatusRunning,
			EngineVersion:    record.EngineVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("journal run: %w", err)
		}
	}

	slog.Info("starting workers", "run_id", runID, "workers", n, "script", e.cfg.ScriptPath)

	execs := make([]*record.Execution, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			exec, err := e.work(ctx, runID, clock, i)
			execs[i] = exec
			return err
		})
	}
	runErr := g.Wait()

	for _, exec := range execs {
		if exec == nil {
			continue
		}
		result.Executions = append(result.Executions, *exec)
		if exec.ScriptError != "" {
			result.ScriptErrors++
		}
	}
	slices.SortFunc(result.Executions, func(a, b record.Execution) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	result.Checksum = e.section.Checksum()

	status := result.Status()
	if runErr != nil {
		status = record.StatusAborted
	}
	if e.journal != nil {
		if err := e.journal.FinishRun(journalCtx, runID, result.Checksum, status, result.ScriptErrors); err != nil {
			slog.Error("failed to journal run result", "run_id", runID, "error", err)
		}
	}

	slog.Info("workers joined",
		"run_id", runID,
		"checksum", result.Checksum,
		"expected", result.Expected,
		"script_errors", result.ScriptErrors,
		"status", status,
	)

	return result, runErr
}

// work is the body of worker i (zero-based). It returns the execution record
// if the worker made it through the critical section.
func (e *Engine) work(ctx context.Context, runID string, clock *Clock, i int) (exec *record.Execution, err error) {
	worker := i + 1
	defer func() {
		if r := recover(); r != nil {
			err = NewWorkerError(runID, worker, fmt.Errorf("panic: %v", r))
			slog.Error("worker panicked", "run_id", runID, "worker", worker, "panic", r)
		}
	}()

	fmt.Fprintf(e.out, "launched worker #%d\n", worker)

	// Unsynchronized work outside the lock.
	if err := e.sleep(ctx, e.randDuration(e.cfg.MaxWorkDelay)); err != nil {
		return nil, NewWorkerError(runID, worker, err)
	}

	var sleepErr error
	e.section.Enter(func(vm *script.Engine, checksum *int64) {
		fmt.Fprintf(e.out, "running script in worker #%d\n", worker)

		// Synchronized work inside the lock.
		if sleepErr = e.sleep(ctx, e.randDuration(e.cfg.MaxLockedDelay)); sleepErr != nil {
			return
		}

		var scriptErr string
		if vm.LoadProtected(ctx, e.cfg.ScriptPath) != script.StateOK {
			if errInfo := vm.ErrInfo(); errInfo != nil {
				scriptErr = errInfo.Error()
				slog.Warn("script raised exception",
					"error", NewScriptError(runID, worker, errInfo),
					"kind", errInfo.Kind,
				)
			}
		}

		*checksum += record.Contribution(i)
		exec = &record.Execution{
			RunID:         runID,
			Worker:        worker,
			Seq:           clock.Next(),
			Contribution:  record.Contribution(i),
			ChecksumAfter: *checksum,
			ScriptError:   scriptErr,
		}
		fmt.Fprintf(e.out, "shared checksum: %d\n", *checksum)
	})
	if sleepErr != nil {
		return nil, NewWorkerError(runID, worker, sleepErr)
	}

	id, err := record.ExecutionID(runID, worker, exec.Seq)
	if err != nil {
		return nil, NewWorkerError(runID, worker, err)
	}
	exec.ID = id
	if e.journal != nil {
		if err := e.journal.WriteExecution(context.WithoutCancel(ctx), *exec); err != nil {
			slog.Error("failed to journal execution", "run_id", runID, "worker", worker, "error", err)
		}
	}
	slog.Debug("worker finished", "run_id", runID, "worker", worker, "seq", exec.Seq)

	return exec, nil
}

func (e *Engine) randDuration(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(e.jitter(int64(limit)))
}

// sleepContext waits for d, returning early with ctx.Err() if ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
