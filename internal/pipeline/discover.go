package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// Discover expands inputs into workbook files. Directories are walked
// recursively, skipping hidden directories; files are taken as given but
// must carry a workbook extension. The result is deduplicated, with
// directory contents sorted and inputs kept in argument order.
func Discover(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			files = append(files, clean)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input: %w", err)
		}
		if !info.IsDir() {
			if !workbook.IsWorkbookFile(in) {
				return nil, fmt.Errorf("%s: not a workbook file (want %v)", in, workbook.Extensions)
			}
			add(in)
			continue
		}

		found, err := walkWorkbooks(in)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func walkWorkbooks(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if workbook.IsWorkbookFile(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(found)
	return found, nil
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}
