package store

import (
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/scriptlock/internal/record"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a running run with minimal required fields.
func createTestRun(id string, workers int) record.Run {
	return record.Run{
		ID:               id,
		Workers:          workers,
		ScriptPath:       "./test.lua",
		ExpectedChecksum: record.ExpectedChecksum(workers),
		Status:           record.StatusRunning,
		EngineVersion:    record.EngineVersion,
	}
}

// createTestExecution creates an execution for the zero-based worker index.
func createTestExecution(runID string, index int, seq, checksumAfter int64) record.Execution {
	return record.Execution{
		ID:            record.MustExecutionID(runID, index+1, seq),
		RunID:         runID,
		Worker:        index + 1,
		Seq:           seq,
		Contribution:  record.Contribution(index),
		ChecksumAfter: checksumAfter,
	}
}

// getTableIndexes returns the names of all indexes on a table.
func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to query indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, s string) bool {
	return slices.Contains(list, s)
}
