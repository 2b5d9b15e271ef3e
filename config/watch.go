package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounce = 100 * time.Millisecond

// Watcher calls a function whenever the config file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	fileName  string
	onChange  func()

	mu            sync.Mutex
	debounceTimer *time.Timer
	done          chan struct{}
}

// Watch starts watching the given file. The directory is watched instead of the file itself,
// since editors often replace the file instead of writing it.
func Watch(fileName string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	absName, err := filepath.Abs(fileName)
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(absName)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	w := Watcher{
		fsWatcher: fsWatcher,
		fileName:  absName,
		onChange:  onChange,
		done:      make(chan struct{}),
	}
	go w.loop()
	return &w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.fileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debugf("Config file changed: %v", event)
			w.schedule()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warnf("Watching the config file failed: %v", err)
		}
	}
}

// schedule calls onChange once the file has not changed for watchDebounce.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(watchDebounce, w.onChange)
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.fsWatcher.Close()
}
