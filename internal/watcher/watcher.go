// Package watcher reports edited pipeline files.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/bioflow/internal/ctxlog"
)

// DefaultDebounce is the quiet period after the last event before changes
// are reported.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives the changed files of one debounce window, sorted.
type Handler func(ctx context.Context, files []string)

// Options configure a Watcher.
type Options struct {
	// Dirs are watched recursively, including directories created later.
	Dirs []string
	// Pattern selects the reported files, matched against the base name.
	// It defaults to "*.hcl".
	Pattern  string
	Debounce time.Duration
}

// Watcher batches file system events and hands them to a Handler.
type Watcher struct {
	opts    Options
	handler Handler
	fs      *fsnotify.Watcher
}

// New creates a watcher. Nothing is watched until Run.
func New(opts Options, handler Handler) (*Watcher, error) {
	if opts.Pattern == "" {
		opts.Pattern = "*.hcl"
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", opts.Pattern)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{opts: opts, handler: handler, fs: fsw}, nil
}

// Run watches until ctx is done. The handler is called on the Run
// goroutine, so a slow handler delays the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	logger := ctxlog.FromContext(ctx)

	for _, dir := range w.opts.Dirs {
		if err := w.addRecursive(ctx, dir); err != nil {
			return err
		}
	}
	logger.Info("🔍 Watching pipeline files.", "dirs", w.opts.Dirs, "pattern", w.opts.Pattern)

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ctx, event.Name); err != nil {
						logger.Warn("Failed to watch new directory.", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("File changed.", "file", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}
			timer.Reset(w.opts.Debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error.", "error", err)
		case <-timer.C:
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			clear(pending)
			sort.Strings(files)
			w.handler(ctx, files)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	matched, _ := doublestar.Match(w.opts.Pattern, filepath.Base(event.Name))
	return matched
}

func (w *Watcher) addRecursive(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		ctxlog.FromContext(ctx).Debug("Watching directory.", "dir", path)
		return nil
	})
}
