// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when record files under a database root
// change. Events are debounced: an editor's write-then-rename, or a checkout
// touching many records, results in a single callback carrying every changed
// path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/heimdal-dev/pkgdb/pkg/record"
)

// DefaultDebounce is the quiet period used when Config.Debounce is not set.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores lists paths that never trigger a rebuild. The loader skips
// hidden files and directories, so changes to them cannot affect a batch.
var defaultIgnores = []string{
	"**/.*",
	"**/.*/**",
	"**/*~",
	"**/*.swp",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the database root holding the record kind directories.
		Root string

		// Ignore holds extra doublestar patterns, relative to Root, for record
		// paths that must not trigger the callback.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to DefaultDebounce.
		Debounce time.Duration

		// OnChange receives the sorted, deduplicated record paths (relative to
		// Root, slash separated) that changed. Callback errors are logged and
		// do not stop the watcher.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher diagnostics. Nil discards them.
		Logger *log.Logger
	}

	// Watcher monitors the record directories of one database root.
	// Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		root     string
		started  atomic.Bool
	}
)

// Patterns returns the doublestar patterns, relative to the root, that select
// record files: every YAML file below a record kind directory.
func Patterns() []string {
	kinds := record.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.Dir()+"/**/*.{yaml,yml}")
	}
	return out
}

// New validates cfg and registers the root and every existing record kind
// directory with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch: root %s is not a directory", cfg.Root)
	}

	if err := validatePatterns(cfg.Ignore); err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: Patterns(),
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		logger:   logger,
		debounce: debounce,
		root:     root,
	}

	// The root itself is watched so kind directories created later are picked up.
	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch: add root %q: %w", root, err)
	}
	for _, k := range record.Kinds() {
		if err := w.addTree(filepath.Join(root, k.Dir())); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	b := newBatcher(w.debounce, func(changed []string) {
		if ctx.Err() != nil {
			return
		}
		w.logger.Debug("records changed", "files", len(changed))
		if w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("rebuild failed", "err", err)
		}
	}, w.logger)
	defer func() {
		b.stop()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing fsnotify watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if rel, ok := w.relevant(evt.Name); ok {
				b.add(rel)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// relevant returns the slash-separated path of name relative to the root
// when it is a record file that is not ignored.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if matchAny(w.ignores, rel) {
		return "", false
	}
	return rel, matchAny(w.patterns, rel)
}

// addTree registers dir and its non-hidden subdirectories. A missing dir is
// not an error; it is added when created.
func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return err
	}
	return nil
}

// maybeAddDir starts watching a directory created after New when it is a
// record kind directory or lies below one.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if !isKindDir(top) {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("watching new directory", "path", path, "err", err)
		return
	}
	w.logger.Debug("watching new directory", "path", path)
}

func isKindDir(name string) bool {
	for _, k := range record.Kinds() {
		if k.Dir() == name {
			return true
		}
	}
	return false
}

// isFatal reports whether err means the watcher can no longer deliver events.
func isFatal(err error) bool {
	for _, errno := range fatalErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// validatePatterns checks that every pattern is a valid doublestar glob.
func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}
	return nil
}
