// Package watcher provides file system watching with debouncing for the
// registry input documents.
package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the registry input documents and signals changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]struct{} // absolute paths of watched documents
	debounce  time.Duration
	onChange  chan string
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Paths are the document files to watch.
	Paths       []string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:       paths,
		DebounceDur: 1 * time.Second,
	}
}

// New creates a new document watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	files := make(map[string]struct{}, len(cfg.Paths))
	for _, path := range cfg.Paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		files[abs] = struct{}{}
	}

	debounce := cfg.DebounceDur
	if debounce <= 0 {
		debounce = time.Second
	}

	return &Watcher{
		fsWatcher: fsw,
		files:     files,
		debounce:  debounce,
		onChange:  make(chan string, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the directories containing the documents.
// Returns a channel that receives the changed path after each burst of
// changes settles.
func (w *Watcher) Start() (<-chan string, error) {
	// Watch the containing directories: editors often replace files by
	// rename, which drops a watch placed on the file itself.
	dirs := make(map[string]struct{})
	for file := range w.files {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending string
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}
			pending = event.Name

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					// Drain the timer channel if it already fired
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending != "" {
				// Non-blocking send - drop if channel full
				select {
				case w.onChange <- pending:
				default:
				}
				pending = ""
			}

		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			// Note: We intentionally don't log here to avoid dependency on a logger.
			// Callers can wrap the watcher if they need error visibility.

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger a rebuild.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, watched := w.files[abs]
	return watched
}
