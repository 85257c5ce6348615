package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// reloadDebounce collapses editor write bursts into a single reload.
const reloadDebounce = 300 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk and hands
// the new snapshot to the registered callback.
type Watcher struct {
	path     string
	onReload func(*Config)

	mu      sync.Mutex
	current *Config
}

// NewWatcher builds a watcher for the given config file. onReload is invoked
// with every successfully parsed snapshot, including the initial one.
func NewWatcher(path string, initial *Config, onReload func(*Config)) *Watcher {
	return &Watcher{path: path, onReload: onReload, current: initial}
}

// Current returns the latest successfully loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run watches the config file until the context is cancelled. Reload failures
// keep the previous snapshot active.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the parent directory so atomic rename-based saves are observed.
	dir := filepath.Dir(w.path)
	if err = watcher.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	reload := func() {
		cfg, errLoad := LoadConfig(w.path)
		if errLoad != nil {
			log.WithField("error", errLoad).Warn("config reload failed, keeping previous configuration")
			return
		}
		w.mu.Lock()
		w.current = cfg
		w.mu.Unlock()
		log.Info("configuration reloaded")
		if w.onReload != nil {
			w.onReload(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case errWatch, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithField("error", errWatch).Warn("config watcher error")
		}
	}
}
