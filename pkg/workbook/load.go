package workbook

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
)

// Extensions recognized as workbook inputs.
var Extensions = []string{".twb", ".twbx"}

// LoadOptions configures Load.
type LoadOptions struct {
	MaxEntrySize int64
	Logger       *slog.Logger
}

// Load unwraps, parses and builds a workbook from raw file bytes. name is
// used for the workbook name and in error messages.
func Load(name string, data []byte, opts LoadOptions) (*Workbook, error) {
	payload, err := ReadArchive(name, data, ArchiveOptions{MaxEntrySize: opts.MaxEntrySize})
	if err != nil {
		return nil, err
	}

	root, err := ParseMarkup(bytes.NewReader(payload.Data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	wb, err := Build(root, BuildOptions{Name: WorkbookName(name), Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	wb.Format = payload.Format
	wb.Fingerprint = Fingerprint(payload.Data)
	return wb, nil
}

// LoadFile reads and loads the workbook at path.
func LoadFile(path string, opts LoadOptions) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	return Load(path, data, opts)
}

// Fingerprint hashes a markup payload.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// WorkbookName derives a workbook name from a file path.
func WorkbookName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsWorkbookFile reports whether path has a workbook extension.
func IsWorkbookFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
