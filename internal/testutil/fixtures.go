package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// RepoRoot returns the module root, located from this file.
func RepoRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok, "failed to locate testutil source")
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// SuperstorePath returns the path of the sample flat workbook.
func SuperstorePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(RepoRoot(t), "pkg", "workbook", "testdata", "superstore.twb")
}

// Superstore returns the markup of the sample workbook.
func Superstore(t testing.TB) []byte {
	t.Helper()
	data, err := os.ReadFile(SuperstorePath(t))
	require.NoError(t, err)
	return data
}

// WriteFile writes data to dir/name, creating parent directories.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// WriteArchive writes a packaged workbook at dir/name holding entries.
func WriteArchive(t testing.TB, dir, name string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for entry, data := range entries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}
