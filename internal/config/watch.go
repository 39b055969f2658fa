package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ehrlich-b/termalive/internal/logger"
)

// Watcher reloads termalive.yaml whenever it changes on disk and hands the
// new HostConfig to OnChange. The host's caller is responsible for deciding
// which fields of a live config it actually re-reads (most, like
// WebSocketAddr, only take effect on the next listener restart).
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(HostConfig)

	mu     sync.Mutex
	latest HostConfig
}

// NewWatcher loads path once and starts watching its directory for writes.
// A missing file is not an error — Defaults() is used and the watcher still
// starts, so creating the file later is picked up.
func NewWatcher(path string, onChange func(HostConfig)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, watcher: fw, onChange: onChange, latest: cfg}
	if err := fw.Add(parentDir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[:i]
		}
	}
	return "."
}

func (w *Watcher) run() {
	log := logger.For("config")
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.mu.Lock()
			w.latest = cfg
			w.mu.Unlock()
			log.Info("config reloaded", "path", w.path)
			if cfg.LogLevel != "" {
				logger.SetLevel(cfg.LogLevel)
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() HostConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
