// Package watcher observes the archive directory so serve mode reacts to
// new captures landing from the externally scheduled collector.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/claude-meter/internal/logger"
)

// Event signals that a new archive entry appeared.
type Event struct {
	Path string
	Time time.Time
}

// Watcher watches the archive root and its per-day subdirectories for new
// snapshot files. Archive writes are rename-into-place, so a single Create
// event per entry is guaranteed and no partial files are ever observed.
type Watcher struct {
	mu            sync.Mutex
	dir           string
	fsWatcher     *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// New creates a watcher over the archive root directory.
func New(dir string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		dir:       dir,
		fsWatcher: fsWatcher,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}

	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Per-day subdirectories already on disk need their own watches;
	// fsnotify does not recurse.
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				if err := fsWatcher.Add(filepath.Join(dir, entry.Name())); err != nil {
					logger.Warn("failed to watch archive day dir", "dir", entry.Name(), "error", err)
				}
			}
		}
	}

	go w.watchLoop()
	return w, nil
}

// Events returns the channel of archive change events.
func (w *Watcher) Events() <-chan Event {
	return w.eventChan
}

// watchLoop handles file system events with debouncing.
func (w *Watcher) watchLoop() {
	const debounceInterval = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == 0 {
				continue
			}

			// A new day directory needs its own watch
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.fsWatcher.Add(event.Name); err != nil {
					logger.Warn("failed to watch archive day dir", "dir", event.Name, "error", err)
				}
				continue
			}

			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
				continue
			}

			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			path := event.Name
			w.debounceTimer = time.AfterFunc(debounceInterval, func() {
				w.emit(Event{Path: path, Time: time.Now()})
			})
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Error("archive watcher error", "error", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) emit(event Event) {
	select {
	case w.eventChan <- event:
	default:
		// Consumer is behind; drop rather than block the watch loop
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stopChan)
	return w.fsWatcher.Close()
}
