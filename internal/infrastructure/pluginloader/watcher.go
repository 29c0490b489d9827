package pluginloader

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

// FileWatcher watches File-locator plugin paths under active
// development and calls onChange with the tool id on write events (the
// container wires it to the wasm host's Invalidate, which drops the
// compiled module), so a `--watch` style dev loop picks up an edited
// plugin without a manual cache clear (SPEC_FULL.md's domain-stack
// assignment for fsnotify).
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(id values.Id)

	mu    sync.Mutex
	byDir map[string]values.Id
}

// NewFileWatcher starts watching nothing until Watch is called.
func NewFileWatcher(logger *slog.Logger, onChange func(id values.Id)) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &FileWatcher{watcher: w, logger: logger, onChange: onChange, byDir: make(map[string]values.Id)}
	go fw.run()
	return fw, nil
}

// Watch adds path (a plugin's File locator target) to the watch set,
// associated with id so a later change event can be attributed back to
// the tool whose cache entry needs invalidating.
func (fw *FileWatcher) Watch(id values.Id, path string) error {
	dir := filepath.Dir(path)
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}
	fw.mu.Lock()
	fw.byDir[dir] = id
	fw.mu.Unlock()
	return nil
}

// Close stops the underlying fsnotify watcher.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.mu.Lock()
			id, ok := fw.byDir[filepath.Dir(event.Name)]
			fw.mu.Unlock()
			if ok && fw.onChange != nil {
				fw.onChange(id)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("plugin file watcher error", "error", err)
		}
	}
}
