// Package watch notifies when a database file changes on disk.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/sqlite"
)

// Event kinds passed to the change callback.
const (
	EventModified = "modified"
	EventRemoved  = "removed"
)

// Watcher monitors one database file. Events are debounced so a writer
// that touches the file and its journal in quick succession produces a
// single callback.
type Watcher struct {
	mu sync.Mutex

	path   string
	logger *log.Logger

	fsWatcher *fsnotify.Watcher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	debounceDelay time.Duration
	pending       fsnotify.Op
	eventTimer    *time.Timer

	onChange func(path, event string)
	onError  func(err error)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceDelay sets how long to wait for events to settle. Default is
// 100ms.
func WithDebounceDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnChange sets the callback run after the file settles.
func WithOnChange(fn func(path, event string)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets a callback for watcher errors.
func WithOnError(fn func(err error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a watcher for the database file at path.
func New(path string, logger *log.Logger, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		path:          abs,
		logger:        logger,
		fsWatcher:     fsw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		debounceDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start begins watching. The parent directory is watched so that files
// replaced by rename are still seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Storage().Info("database watcher started", "path", w.path)

	go w.processEvents()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Storage().Info("database watcher stopped", "path", w.path)
	return w.fsWatcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			w.mu.Lock()
			if w.eventTimer != nil {
				w.eventTimer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Storage().Error("watcher error", err, "path", w.path)
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// relevant reports whether name is the database or one of its journals.
func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	return name == w.path || name == w.path+"-wal" || name == w.path+"-journal"
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Name == w.path {
		w.pending |= event.Op
	} else {
		w.pending |= fsnotify.Write
	}

	if w.eventTimer != nil {
		w.eventTimer.Stop()
	}
	w.eventTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	op := w.pending
	w.pending = 0
	w.mu.Unlock()

	if op == 0 {
		return
	}

	event := EventModified
	ok, err := sqlite.IsSQLitePath(w.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		event = EventRemoved
	case err != nil:
		w.fail(err)
		return
	case !ok:
		// Mid-write or replaced by something else; wait for the next event.
		w.fail(fmt.Errorf("%s is not a sqlite database", w.path))
		return
	}

	w.logger.Storage().Debug("database file changed", "path", w.path, "event", event)
	if w.onChange != nil {
		w.onChange(w.path, event)
	}
}

func (w *Watcher) fail(err error) {
	w.logger.Storage().Warn("cannot reload database", "path", w.path, "error", err.Error())
	if w.onError != nil {
		w.onError(err)
	}
}
