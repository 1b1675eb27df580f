package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateRun starts a run over the given number of inputs.
func (s *SQLiteStore) CreateRun(ctx context.Context, inputs int) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	run := &Run{
		ID:         generateID(),
		Status:     RunStatusRunning,
		InputCount: inputs,
		StartedAt:  time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.Int("inputs", inputs))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, input_count, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), run.InputCount, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordFile stores the outcome of one file and updates the run counters.
func (s *SQLiteStore) RecordFile(ctx context.Context, r *FileResult) error {
	if s.db == nil {
		return errNotOpen
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO file_results
			(run_id, source_file, fingerprint, success, error, measures_translated,
			 measures_flagged, visuals_mapped, unsupported, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.SourceFile, r.Fingerprint, r.Success, nullString(r.Error),
		r.MeasuresTranslated, r.MeasuresFlagged, r.VisualsMapped, r.Unsupported,
		r.Duration.Milliseconds(), r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record file %s: %w", r.SourceFile, err)
	}

	column := "failed"
	if r.Success {
		column = "successful"
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET `+column+` = `+column+` + 1 WHERE id = ?`, r.RunID,
	); err != nil {
		return fmt.Errorf("failed to update run %s: %w", r.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file result: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpen
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, input_count, successful, failed, started_at, completed_at, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, input_count, successful, failed, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListFiles returns the file results of a run in recording order.
func (s *SQLiteStore) ListFiles(ctx context.Context, runID string) ([]*FileResult, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source_file, fingerprint, success, error, measures_translated,
			measures_flagged, visuals_mapped, unsupported, duration_ms, recorded_at
		 FROM file_results WHERE run_id = ? ORDER BY recorded_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file results: %w", err)
	}
	defer rows.Close()

	var out []*FileResult
	for rows.Next() {
		r := &FileResult{}
		var errMsg sql.NullString
		var durationMs int64
		if err := rows.Scan(&r.RunID, &r.SourceFile, &r.Fingerprint, &r.Success, &errMsg,
			&r.MeasuresTranslated, &r.MeasuresFlagged, &r.VisualsMapped, &r.Unsupported,
			&durationMs, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file result: %w", err)
		}
		r.Error = errMsg.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastFingerprint returns the fingerprint of the latest successful
// migration of sourceFile, if any.
func (s *SQLiteStore) LastFingerprint(ctx context.Context, sourceFile string) (string, bool, error) {
	if s.db == nil {
		return "", false, errNotOpen
	}

	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM file_results
		 WHERE source_file = ? AND success = 1
		 ORDER BY recorded_at DESC LIMIT 1`, sourceFile).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return fp, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.ID, &status, &run.InputCount, &run.Successful, &run.Failed,
		&run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
