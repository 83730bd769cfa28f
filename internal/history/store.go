package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/giantswarm/microerror"
	_ "github.com/mattn/go-sqlite3"

	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/migrations"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// Store handles load test run persistence
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the database at dbPath and applies migrations.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Store{
		db:  db,
		now: time.Now,
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Create records a run that is about to execute and sets its ID.
func (s *Store) Create(run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	result, err := s.db.Exec(`
		INSERT INTO load_test_runs
		(started_at, status, target_url, method, call_type, virtual_users, duration, ramp_up, headers, body, k6_binary, script)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt.UTC(), run.Status, run.Config.TargetURL, run.Config.Method, string(run.Config.CallType),
		run.Config.VirtualUsers, run.Config.Duration, run.Config.RampUp, run.Config.Headers, run.Config.Body,
		run.Binary, run.Script)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id

	return nil
}

// Complete stores the outcome of a run created with Create.
func (s *Store) Complete(run *Run) error {
	if run.CompletedAt == nil {
		completed := s.now()
		run.CompletedAt = &completed
	}

	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	var exitCode sql.NullInt64
	if run.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*run.ExitCode), Valid: true}
	}

	result, err := s.db.Exec(`
		UPDATE load_test_runs
		SET completed_at = ?, status = ?, k6_binary = ?, summary = ?, metrics = ?, raw_output = ?, error = ?,
		    exit_code = ?, duration_ms = ?
		WHERE id = ?
	`, run.CompletedAt.UTC(), run.Status, run.Binary, run.Summary, string(metrics), run.RawOutput, run.Error,
		exitCode, run.DurationMS, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return microerror.Maskf(notFoundError, "run %d does not exist", run.ID)
	}

	return nil
}

const selectRun = `
	SELECT id, started_at, completed_at, status, target_url, method, call_type, virtual_users, duration,
	       COALESCE(ramp_up, ''), COALESCE(headers, ''), COALESCE(body, ''), COALESCE(k6_binary, ''), script,
	       COALESCE(summary, ''), COALESCE(metrics, ''), COALESCE(raw_output, ''), COALESCE(error, ''),
	       exit_code, duration_ms
	FROM load_test_runs
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}

	var (
		completedAt sql.NullTime
		callType    string
		metrics     string
		exitCode    sql.NullInt64
	)

	err := row.Scan(&run.ID, &run.StartedAt, &completedAt, &run.Status, &run.Config.TargetURL, &run.Config.Method,
		&callType, &run.Config.VirtualUsers, &run.Config.Duration, &run.Config.RampUp, &run.Config.Headers,
		&run.Config.Body, &run.Binary, &run.Script, &run.Summary, &metrics, &run.RawOutput, &run.Error,
		&exitCode, &run.DurationMS)
	if err != nil {
		return nil, err
	}

	run.Config.CallType = loadtest.CallType(callType)
	run.StartedAt = run.StartedAt.Local()
	if completedAt.Valid {
		t := completedAt.Time.Local()
		run.CompletedAt = &t
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if metrics != "" {
		if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics of run %d: %w", run.ID, err)
		}
	}

	return run, nil
}

// Get retrieves a run by ID
func (s *Store) Get(id int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(selectRun+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, microerror.Maskf(notFoundError, "run %d does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first
func (s *Store) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Query(selectRun+" ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run
func (s *Store) Delete(id int64) error {
	result, err := s.db.Exec("DELETE FROM load_test_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return microerror.Maskf(notFoundError, "run %d does not exist", id)
	}
	return nil
}

// Prune deletes runs started before the given time and returns how many
// were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM load_test_runs WHERE started_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return n, nil
}

// Count returns the number of stored runs
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM load_test_runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
