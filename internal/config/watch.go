package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/flightwatch/internal/logger"
)

const debounceInterval = 100 * time.Millisecond

// FileWatcher calls a function when a single file is written or created.
// Bursts of events within the debounce interval collapse into one call.
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	onChange      func()
	debounceTimer *time.Timer
	stopChan      chan struct{}
	path          string
	mu            sync.Mutex
	closeOnce     sync.Once
}

// WatchFile starts watching path. The directory is watched, not the file, so
// editors that replace the file on save are handled.
func WatchFile(path string, onChange func()) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, err
	}

	w := &FileWatcher{
		watcher:  watcher,
		onChange: onChange,
		stopChan: make(chan struct{}),
		path:     path,
	}
	go w.watchLoop()
	return w, nil
}

// watchLoop handles file system events with debouncing.
func (w *FileWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.mu.Lock()
				if w.debounceTimer != nil {
					w.debounceTimer.Stop()
				}
				w.debounceTimer = time.AfterFunc(debounceInterval, w.onChange)
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "path", w.path, "error", err)

		case <-w.stopChan:
			return
		}
	}
}

// Close stops the watcher.
func (w *FileWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}
