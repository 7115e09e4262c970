package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ilNikk/Apple-Music-Discord-Presence/internal/logx"
)

const debounceDelay = 100 * time.Millisecond

// Watcher reloads a settings file whenever it changes on disk.
type Watcher struct {
	path     string
	onChange func(*Settings)
	log      *logx.Logger

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// NewWatcher calls onChange with the freshly loaded settings after every
// change to path. Files that fail to parse are logged and skipped.
func NewWatcher(path string, onChange func(*Settings)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:      filepath.Clean(path),
		onChange:  onChange,
		log:       logx.NewLogger("config"),
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
	}, nil
}

// Start watches the directory holding the file, so editors that replace it
// by rename are seen too. The directory is created if needed.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()
		w.debounceMu.Lock()
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.debounceMu.Unlock()
		w.wg.Wait()
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
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
			w.log.Warn("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.log.Debug("fsnotify: %s %s", event.Op, event.Name)

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	if !FileExists(w.path) {
		// Renamed away; the replacement shows up as its own event.
		return
	}
	settings, err := LoadSettingsFrom(w.path)
	if err != nil {
		w.log.Warn("reload settings: %v", err)
		return
	}
	if err := settings.Validate(); err != nil {
		w.log.Warn("ignoring invalid settings: %v", err)
		return
	}
	w.log.Info("settings reloaded from %s", w.path)
	w.onChange(settings)
}
