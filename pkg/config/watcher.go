package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent signals that the watched configuration file was rewritten.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// Watcher watches the configuration file and emits debounced change events
// so the chat loop can reload model settings without restarting the session.
type Watcher struct {
	watcher       *fsnotify.Watcher
	events        chan ChangeEvent
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	watchedPath   string
	closed        bool
	closeMu       sync.RWMutex
}

const debounceDelay = 500 * time.Millisecond

// NewWatcher creates a configuration file watcher.
func NewWatcher() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Watch starts watching the given configuration file. The containing
// directory is watched rather than the file itself, which survives the
// rename-and-replace pattern editors use when saving.
func (cw *Watcher) Watch(path string) error {
	cw.closeMu.RLock()
	if cw.closed {
		cw.closeMu.RUnlock()
		return fmt.Errorf("watcher is closed")
	}
	cw.closeMu.RUnlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := cw.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(absPath), err)
	}

	cw.watchedPath = absPath
	slog.Debug("watching config file", "path", absPath)

	return nil
}

// Events returns the channel on which change events are delivered.
// The channel is closed when the watcher stops.
func (cw *Watcher) Events() <-chan ChangeEvent {
	return cw.events
}

// Start begins processing file system events until ctx is cancelled.
func (cw *Watcher) Start(ctx context.Context) {
	go cw.processEvents(ctx)
}

func (cw *Watcher) processEvents(ctx context.Context) {
	// Mark closed before closing the channel so a debounce timer firing
	// during shutdown cannot send on it. The fsnotify watcher is released
	// here too, covering shutdown by context cancellation.
	defer func() {
		cw.closeMu.Lock()
		alreadyClosed := cw.closed
		cw.closed = true
		cw.closeMu.Unlock()
		if !alreadyClosed {
			_ = cw.watcher.Close()
		}
		close(cw.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if eventPath != cw.watchedPath {
				continue
			}

			// Editors typically save via write or create-and-rename.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			slog.Debug("config file changed", "path", event.Name, "op", event.Op)
			cw.scheduleEmit(eventPath)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// scheduleEmit emits a change event after the debounce delay, collapsing
// rapid consecutive writes into a single event.
func (cw *Watcher) scheduleEmit(path string) {
	cw.debounceMu.Lock()
	defer cw.debounceMu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	cw.debounceTimer = time.AfterFunc(debounceDelay, func() {
		cw.closeMu.RLock()
		defer cw.closeMu.RUnlock()

		if cw.closed {
			return
		}

		select {
		case cw.events <- ChangeEvent{Path: path, Timestamp: time.Now()}:
		default:
			slog.Warn("config reload event channel full, skipping event")
		}
	})
}

// Close stops the watcher and releases resources. The events channel is
// closed by the processing goroutine once it drains.
func (cw *Watcher) Close() error {
	cw.closeMu.Lock()
	alreadyClosed := cw.closed
	cw.closed = true
	cw.closeMu.Unlock()

	cw.debounceMu.Lock()
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceMu.Unlock()

	if alreadyClosed {
		return nil
	}
	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}
