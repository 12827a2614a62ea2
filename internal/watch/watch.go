// Package watch reports debounced file changes to a callback.
//
// Bursts of events (an editor writing a file, an atomic rename, a sync
// touching many tasks) are coalesced: the callback runs once per quiet
// period with every path that changed during the burst.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds configuration for a Watcher.
type Config struct {
	// Debounce is how long the watcher waits after the last event before
	// calling back.
	Debounce time.Duration

	// Logger for watcher errors and callback failures
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce: 100 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// OnChange is called with the sorted, de-duplicated paths that changed.
type OnChange func(ctx context.Context, paths []string) error

// Watcher watches directories and individual files.
type Watcher struct {
	fs     *fsnotify.Watcher
	config *Config

	mu    sync.Mutex
	dirs  map[string][]string // dir -> accepted extensions (nil: all)
	files map[string]bool     // individually watched files
}

// New creates a watcher. Add paths before calling Run.
func New(config *Config) (*Watcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		fs:     fsw,
		config: config,
		dirs:   make(map[string][]string),
		files:  make(map[string]bool),
	}, nil
}

// AddDir watches files directly inside dir. When exts is non-empty only
// files with one of those extensions are reported.
func (w *Watcher) AddDir(dir string, exts ...string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := w.fs.Add(abs); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	w.mu.Lock()
	w.dirs[abs] = exts
	w.mu.Unlock()
	return nil
}

// AddFile watches a single file. Its parent directory is watched so that
// replacing the file by rename is still seen.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := w.fs.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w.mu.Lock()
	w.files[abs] = true
	w.mu.Unlock()
	return nil
}

// Run delivers changes to fn until ctx is cancelled, then closes the
// watcher. Errors from fn are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, fn OnChange) error {
	defer w.fs.Close()

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			path, ok := w.relevant(event.Name)
			if !ok {
				continue
			}
			pending[path] = true

			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)

			if err := fn(ctx, paths); err != nil {
				w.config.Logger.Printf("Error handling change to %s: %v", strings.Join(paths, ", "), err)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// relevant maps an event path to its absolute form and reports whether
// any registration covers it.
func (w *Watcher) relevant(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[abs] {
		return abs, true
	}

	exts, ok := w.dirs[filepath.Dir(abs)]
	if !ok {
		return "", false
	}
	if strings.HasPrefix(filepath.Base(abs), ".") {
		return "", false
	}
	if len(exts) == 0 {
		return abs, true
	}
	for _, ext := range exts {
		if filepath.Ext(abs) == ext {
			return abs, true
		}
	}
	return "", false
}
