package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports config file changes without blocking the event loop.
// The caller drains Changed once per tick.
type Watcher struct {
	fw   *fsnotify.Watcher
	path string

	// Changed receives a value after a relevant filesystem event. It holds
	// at most one pending value; events arriving while one is pending are
	// coalesced into it.
	Changed chan struct{}
}

// Watch starts watching the config file's directory (watching the file
// itself breaks on editors that rename-replace).
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{fw: fw, path: path, Changed: make(chan struct{}, 1)}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.Changed <- struct{}{}:
			default:
			}
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.fw.Close()
}
