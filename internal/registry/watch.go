package registry

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultPackWatchDebounce = 500 * time.Millisecond

// ReloadEvent reports the outcome of one debounced pack-directory reload.
type ReloadEvent struct {
	Dir string
	Err error // non-nil on ConflictError or a parse/validation failure
}

// PackWatcher watches one or more pack directories and reloads them into a
// Registry on file changes, using a debounce-then-reload shape so a burst
// of saves from an editor collapses into one reload.
type PackWatcher struct {
	reg      *Registry
	dirs     []string
	force    bool
	debounce time.Duration
	logger   *slog.Logger
	events   chan ReloadEvent

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	once    sync.Once
}

// NewPackWatcher constructs a watcher for dirs, loading force-mode packs if
// force is set.
func NewPackWatcher(reg *Registry, dirs []string, force bool, logger *slog.Logger) *PackWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackWatcher{
		reg: reg, dirs: dirs, force: force,
		debounce: defaultPackWatchDebounce,
		logger:   logger,
		events:   make(chan ReloadEvent, 16),
		stopCh:   make(chan struct{}),
	}
}

// Events exposes reload outcomes for a caller (e.g. cmd/oilctl) to log or
// surface to an operator.
func (w *PackWatcher) Events() <-chan ReloadEvent { return w.events }

// Start performs an initial load of every directory, then watches them for
// changes.
func (w *PackWatcher) Start() error {
	for _, dir := range w.dirs {
		if err := w.reg.LoadDir(dir, w.force); err != nil {
			return err
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.watcher = fsWatcher
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := fsWatcher.Add(dir); err != nil {
			w.logger.Warn("pack watcher: cannot watch directory", "dir", dir, "error", err)
		}
	}

	go w.watchLoop()
	return nil
}

// Stop terminates the watcher and closes its event channel.
func (w *PackWatcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
		close(w.events)
	})
}

func (w *PackWatcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("pack watcher error", "error", err)
		}
	}
}

func (w *PackWatcher) handleEvent(event fsnotify.Event) {
	ext := filepath.Ext(event.Name)
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.scheduleReload(filepath.Dir(event.Name))
}

func (w *PackWatcher) scheduleReload(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		err := w.reg.LoadDir(dir, w.force)
		select {
		case w.events <- ReloadEvent{Dir: dir, Err: err}:
		default:
			w.logger.Warn("pack watcher: event channel full, dropping reload notification", "dir", dir)
		}
	})
}
