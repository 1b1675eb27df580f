package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/vizmigrate/pkg/workbook"
)

// RunFunc receives the outcome of each watch-triggered run.
type RunFunc func(files []string, res *Result, err error)

// Watch re-migrates workbook files under inputs whenever they are written
// or created. Events within debounce of each other are batched into one run.
// Watch blocks until ctx is done.
func (p *Pipeline) Watch(ctx context.Context, inputs []string, debounce time.Duration, onRun RunFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Files named explicitly are watched through their directory; other
	// workbooks in that directory are ignored.
	explicit := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return fmt.Errorf("failed to stat input: %w", err)
		}
		if info.IsDir() {
			if err := watchTree(watcher, in); err != nil {
				return err
			}
			dirs[filepath.Clean(in)] = true
			continue
		}
		explicit[filepath.Clean(in)] = true
		if err := watcher.Add(filepath.Dir(in)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(in), err)
		}
	}

	relevant := func(path string) bool {
		if !workbook.IsWorkbookFile(path) {
			return false
		}
		return explicit[path] || relevantDir(dirs, path)
	}

	p.logger.Info("watching for changes", "inputs", inputs, "debounce", debounce)

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(path); err == nil && info.IsDir() && !isHidden(info.Name()) && relevantDir(dirs, path) {
					if err := watchTree(watcher, path); err != nil {
						p.logger.Warn("failed to watch new directory", "dir", path, "error", err)
					}
					continue
				}
			}
			if !relevant(path) {
				continue
			}

			pending[path] = true
			timer.Reset(debounce)

		case <-timer.C:
			files := make([]string, 0, len(pending))
			for f := range pending {
				if _, err := os.Stat(f); err == nil {
					files = append(files, f)
				}
			}
			clear(pending)
			if len(files) == 0 {
				continue
			}
			sort.Strings(files)

			p.logger.Info("change detected", "files", len(files))
			res, err := p.Run(ctx, files)
			if ctx.Err() != nil {
				return nil
			}
			if onRun != nil {
				onRun(files, res, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watch error", "error", err)
		}
	}
}

func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func relevantDir(dirs map[string]bool, path string) bool {
	for d := range dirs {
		if rel, err := filepath.Rel(d, path); err == nil && !startsWithParent(rel) {
			return true
		}
	}
	return false
}

func startsWithParent(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
