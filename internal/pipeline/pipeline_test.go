package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/vizmigrate/internal/pipeline"
	"github.com/leapstack-labs/vizmigrate/internal/state"
	"github.com/leapstack-labs/vizmigrate/internal/testutil"
	"github.com/leapstack-labs/vizmigrate/pkg/report"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

// setupInputs creates a good flat workbook and a package with no markup.
func setupInputs(t *testing.T) (dir, good, broken string) {
	t.Helper()
	dir = t.TempDir()
	good = testutil.WriteFile(t, dir, "superstore.twb", testutil.Superstore(t))
	broken = testutil.WriteArchive(t, dir, "nested/broken.twbx", map[string][]byte{
		"Data/Extracts/orders.hyper": []byte("extract"),
	})
	return dir, good, broken
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "b.twb", []byte("<workbook/>"))
	testutil.WriteFile(t, dir, "a.TWB", []byte("<workbook/>"))
	testutil.WriteFile(t, dir, "sub/c.twbx", []byte("PK"))
	testutil.WriteFile(t, dir, ".cache/d.twb", []byte("<workbook/>"))
	testutil.WriteFile(t, dir, "notes.txt", []byte("x"))

	files, err := pipeline.Discover([]string{dir, filepath.Join(dir, "b.twb")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.TWB"),
		filepath.Join(dir, "b.twb"),
		filepath.Join(dir, "sub", "c.twbx"),
	}, files)
}

func TestDiscoverErrors(t *testing.T) {
	dir := t.TempDir()
	txt := testutil.WriteFile(t, dir, "notes.txt", []byte("x"))

	_, err := pipeline.Discover([]string{txt})
	assert.ErrorContains(t, err, "not a workbook file")

	_, err = pipeline.Discover([]string{filepath.Join(dir, "missing.twb")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	files, err := pipeline.Discover([]string{t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRunContainsFailures(t *testing.T) {
	dir, good, broken := setupInputs(t)
	out := filepath.Join(dir, "out")

	p := pipeline.New(pipeline.Config{
		OutputDir: out,
		Workers:   2,
		Logger:    testutil.NewTestLogger(t),
		Now:       fixedNow,
	})
	res, err := p.Run(context.Background(), []string{broken, good})
	require.NoError(t, err)

	b := res.Batch
	assert.Equal(t, 2, b.TotalFiles)
	assert.Equal(t, 1, b.Successful)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, fixedNow(), b.GeneratedAt)
	assert.Empty(t, res.RunID)

	// reports keep input order
	require.Len(t, b.Migrations, 2)
	failed, ok := b.Migrations[0], b.Migrations[1]
	assert.False(t, failed.Success)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "broken.twbx: archive:")
	assert.Nil(t, res.Schemas[0])

	assert.True(t, ok.Success)
	assert.Equal(t, filepath.Join(out, "superstore"), ok.OutputFolder)
	assert.Equal(t, 2, ok.Summary.MeasuresTranslated)
	require.NotNil(t, res.Schemas[1])
	assert.Equal(t, good, res.Schemas[1].Source.File)

	assert.FileExists(t, filepath.Join(out, "superstore", "superstore.canonical.json"))
	assert.FileExists(t, filepath.Join(out, "superstore", "migration_report.json"))
	assert.NoDirExists(t, filepath.Join(out, "broken"))
	assert.NoDirExists(t, filepath.Join(out, pipeline.IntermediateDir))

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(2), doc["total_files"])
	assert.Equal(t, float64(1), doc["failed"])
}

func TestRunYAMLAndIntermediate(t *testing.T) {
	dir, good, _ := setupInputs(t)
	out := filepath.Join(dir, "out")

	p := pipeline.New(pipeline.Config{
		OutputDir:        out,
		Format:           report.FormatYAML,
		SaveIntermediate: true,
		Now:              fixedNow,
	})
	res, err := p.Run(context.Background(), []string{good})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "migration_report.yaml"), res.ReportPath)
	assert.FileExists(t, filepath.Join(out, "superstore", "superstore.canonical.yaml"))
	assert.FileExists(t, filepath.Join(out, "superstore", "migration_report.yaml"))
	assert.FileExists(t, filepath.Join(out, pipeline.IntermediateDir, "superstore_source.yaml"))
}

func TestRunNameCollisions(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a/Sales Report.twb", testutil.Superstore(t))
	b := testutil.WriteFile(t, dir, "b/sales report.twb", testutil.Superstore(t))

	res, err := pipeline.New(pipeline.Config{OutputDir: filepath.Join(dir, "out")}).
		Run(context.Background(), []string{a, b})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out", "Sales_Report"), res.Batch.Migrations[0].OutputFolder)
	assert.Equal(t, filepath.Join(dir, "out", "sales_report_2"), res.Batch.Migrations[1].OutputFolder)
}

func TestRunRecordsHistory(t *testing.T) {
	dir, good, broken := setupInputs(t)

	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	p := pipeline.New(pipeline.Config{
		OutputDir: filepath.Join(dir, "out"),
		Store:     store,
	})
	ctx := context.Background()
	res, err := p.Run(ctx, []string{good, broken})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.InputCount)
	assert.Equal(t, 1, run.Successful)
	assert.Equal(t, 1, run.Failed)

	files, err := store.ListFiles(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byFile := map[string]*state.FileResult{}
	for _, f := range files {
		byFile[f.SourceFile] = f
	}
	require.Contains(t, byFile, good)
	assert.True(t, byFile[good].Success)
	assert.NotEmpty(t, byFile[good].Fingerprint)
	assert.Equal(t, 3, byFile[good].Unsupported)
	require.Contains(t, byFile, broken)
	assert.False(t, byFile[broken].Success)
	assert.Contains(t, byFile[broken].Error, "archive")

	fp, found, err := store.LastFingerprint(ctx, good)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, res.Schemas[0].Source.Fingerprint, fp)
}

func TestRunCancelled(t *testing.T) {
	dir, good, _ := setupInputs(t)
	out := filepath.Join(dir, "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.New(pipeline.Config{OutputDir: out}).Run(ctx, []string{good})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(out, "migration_report.json"))
}

func TestWatchRerunsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0750))
	out := filepath.Join(dir, "out")

	p := pipeline.New(pipeline.Config{OutputDir: out, Logger: testutil.NewTestLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	var lastFiles atomic.Value
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, []string{in}, 20*time.Millisecond, func(files []string, res *pipeline.Result, err error) {
			if err == nil && res.Batch.Successful == 1 {
				lastFiles.Store(files)
				runs.Add(1)
			}
		})
	}()

	// The watcher registers asynchronously; keep touching the file until a run lands.
	data := testutil.Superstore(t)
	target := filepath.Join(in, "superstore.twb")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, data, 0600)
		return runs.Load() > 0
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, []string{target}, lastFiles.Load())
	assert.FileExists(t, filepath.Join(out, "superstore", "superstore.canonical.json"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
