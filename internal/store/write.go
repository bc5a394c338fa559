package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/scriptlock/internal/record"
)

// ErrRunNotFound is returned when a run ID has no journal row.
var ErrRunNotFound = errors.New("run not found")

// WriteRun inserts a run record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run record.Run) error {
	if !run.Status.Valid() {
		return fmt.Errorf("write run: invalid status %q", run.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, workers, script_path, expected_checksum, checksum, status, script_errors, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Workers,
		run.ScriptPath,
		run.ExpectedChecksum,
		run.Checksum,
		string(run.Status),
		run.ScriptErrors,
		run.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	return nil
}

// FinishRun records the final checksum and status of a run.
// Returns ErrRunNotFound if the run was never written.
func (s *Store) FinishRun(ctx context.Context, runID string, checksum int64, status record.RunStatus, scriptErrors int) error {
	if !status.Valid() {
		return fmt.Errorf("finish run: invalid status %q", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET checksum = ?, status = ?, script_errors = ?
		WHERE id = ?
	`, checksum, string(status), scriptErrors, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}

	return nil
}

// WriteExecution inserts an execution record into the store.
// Uses ON CONFLICT DO NOTHING for idempotency - the same execution written
// twice is silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteExecution(ctx context.Context, exec record.Execution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
		(id, run_id, worker, seq, contribution, checksum_after, script_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		exec.ID,
		exec.RunID,
		exec.Worker,
		exec.Seq,
		exec.Contribution,
		exec.ChecksumAfter,
		exec.ScriptError,
	)
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}

	return nil
}
