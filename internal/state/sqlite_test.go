package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"runs", "file_results"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.CreateRun(ctx, 1)
	assert.ErrorIs(t, err, errNotOpen)
	assert.ErrorIs(t, store.RecordFile(ctx, &FileResult{}), errNotOpen)
	assert.ErrorIs(t, store.CompleteRun(ctx, "x", RunStatusCompleted, ""), errNotOpen)
	assert.ErrorIs(t, store.Migrate(), errNotOpen)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, store.RecordFile(ctx, &FileResult{
		RunID:              run.ID,
		SourceFile:         "a.twb",
		Fingerprint:        "00000000000000aa",
		Success:            true,
		MeasuresTranslated: 3,
		MeasuresFlagged:    1,
		VisualsMapped:      2,
		Unsupported:        1,
		Duration:           1500 * time.Millisecond,
	}))
	require.NoError(t, store.RecordFile(ctx, &FileResult{
		RunID:      run.ID,
		SourceFile: "b.twbx",
		Error:      "b.twbx: archive: no workbook markup",
	}))
	require.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusCompleted, ""))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.InputCount)
	assert.Equal(t, 1, got.Successful)
	assert.Equal(t, 1, got.Failed)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Error)

	files, err := store.ListFiles(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.twb", files[0].SourceFile)
	assert.True(t, files[0].Success)
	assert.Equal(t, 1500*time.Millisecond, files[0].Duration)
	assert.Equal(t, 3, files[0].MeasuresTranslated)
	assert.False(t, files[1].Success)
	assert.Equal(t, "b.twbx: archive: no workbook markup", files[1].Error)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.CreateRun(ctx, i)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorContains(t, err, "run not found: missing")

	err = store.CompleteRun(context.Background(), "missing", RunStatusFailed, "boom")
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteStore_LastFingerprint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LastFingerprint(ctx, "a.twb")
	require.NoError(t, err)
	assert.False(t, ok)

	run, err := store.CreateRun(ctx, 1)
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordFile(ctx, &FileResult{
		RunID: run.ID, SourceFile: "a.twb", Fingerprint: "old", Success: true, RecordedAt: base,
	}))

	run2, err := store.CreateRun(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, store.RecordFile(ctx, &FileResult{
		RunID: run2.ID, SourceFile: "a.twb", Fingerprint: "new", Success: true, RecordedAt: base.Add(time.Hour),
	}))
	// failed attempts never count
	run3, err := store.CreateRun(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, store.RecordFile(ctx, &FileResult{
		RunID: run3.ID, SourceFile: "a.twb", Fingerprint: "broken", RecordedAt: base.Add(2 * time.Hour),
	}))

	fp, ok, err := store.LastFingerprint(ctx, "a.twb")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", fp)
}

func TestSQLiteStore_RecordFileRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR REPLACE INTO file_results").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE runs SET successful").
		WithArgs("run-1").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = store.RecordFile(context.Background(), &FileResult{RunID: "run-1", SourceFile: "a.twb", Success: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update run run-1")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CreateRunError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("database is locked"))

	_, err = NewWithDB(db, nil).CreateRun(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListRunsScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "status"}).AddRow("run-1", "running")
	mock.ExpectQuery("SELECT id, status").WithArgs(5).WillReturnRows(rows)

	_, err = NewWithDB(db, nil).ListRuns(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan run")
}
