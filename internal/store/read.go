package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scriptlock/internal/record"
)

const runColumns = `id, workers, script_path, expected_checksum, checksum, status, script_errors, engine_version`

// GetRun returns the run with the given ID, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (record.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return record.Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recently written first.
// A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]record.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []record.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadExecutions returns every execution of a run in serialized order.
// Results are ordered ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run has no executions.
func (s *Store) ReadExecutions(ctx context.Context, runID string) ([]record.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, worker, seq, contribution, checksum_after, script_error
		FROM executions
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []record.Execution{}
	for rows.Next() {
		var e record.Execution
		if err := rows.Scan(&e.ID, &e.RunID, &e.Worker, &e.Seq, &e.Contribution, &e.ChecksumAfter, &e.ScriptError); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}

	return execs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (record.Run, error) {
	var run record.Run
	var status string
	err := r.Scan(
		&run.ID,
		&run.Workers,
		&run.ScriptPath,
		&run.ExpectedChecksum,
		&run.Checksum,
		&status,
		&run.ScriptErrors,
		&run.EngineVersion,
	)
	if err != nil {
		return record.Run{}, err
	}
	run.Status = record.RunStatus(status)
	return run, nil
}
