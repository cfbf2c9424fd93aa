package settings

import (
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Snapshot is a process-wide, read-mostly holder for the current Settings.
// Per §9's design note, a long-running operation (a distance computation
// already in progress) keeps using the snapshot it started with; the
// watcher swaps a new one in atomically rather than mutating in place.
type Snapshot struct {
	value atomic.Pointer[Settings]
}

// NewSnapshot creates a Snapshot initialised to s.
func NewSnapshot(s Settings) *Snapshot {
	snap := &Snapshot{}
	snap.value.Store(&s)
	return snap
}

// Get returns the current Settings value.
func (s *Snapshot) Get() Settings {
	return *s.value.Load()
}

// store atomically replaces the held Settings.
func (s *Snapshot) store(v Settings) {
	s.value.Store(&v)
}

// Watcher watches the settings file for changes and reloads the Snapshot
// it owns, following the same directory-watch-and-filter-by-basename
// pattern as the teacher's store.FileWatcher.
type Watcher struct {
	watcher  *fsnotify.Watcher
	snapshot *Snapshot
	path     string
	logger   *slog.Logger
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewWatcher creates a Watcher for the settings file at path, applying
// reloads to snapshot.
func NewWatcher(path string, snapshot *Snapshot, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher:  fsw,
		snapshot: snapshot,
		path:     path,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the settings file's directory for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	go w.watch()
	return nil
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug("settings file changed, reloading", "path", w.path)
				w.snapshot.store(Load(w.path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)
	return w.watcher.Close()
}
