// Package watch reports source changes under a build context so the dev
// server can rebuild.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher calls back once per burst of file changes below Dir. Hidden
// directories, node_modules and every path in Ignore are skipped.
type Watcher struct {
	Dir      string
	Ignore   []string
	Debounce time.Duration
}

// Run blocks until ctx is done. onChange receives the changed paths,
// relative to Dir and sorted; it is never called concurrently.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	root, err := filepath.Abs(w.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.Dir, err)
	}
	if err := w.addTree(fsw, root); err != nil {
		return err
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	log := zerolog.Ctx(ctx)
	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(root, ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, ev.Name); err != nil {
						log.Warn().Err(err).Str("dir", ev.Name).Msg("Failed to watch new directory")
					}
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = true
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			onChange(ctx, paths)
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	root, err := filepath.Abs(w.Dir)
	if err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(root, p) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(root, p string) bool {
	for _, ig := range w.Ignore {
		abs, err := filepath.Abs(ig)
		if err != nil {
			continue
		}
		if p == abs || strings.HasPrefix(p, abs+string(filepath.Separator)) {
			return true
		}
	}

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "node_modules" || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
