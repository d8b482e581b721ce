package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler receives the previous and the reloaded configuration
type ChangeHandler func(old, updated *Config)

// Watcher reloads the YAML configuration file when it changes
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *Config
	mu       sync.RWMutex
	onChange []ChangeHandler
	logger   *zap.Logger
	debounce time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for cfg.ConfigFile
func NewWatcher(cfg *Config, logger *zap.Logger) (*Watcher, error) {
	if cfg.ConfigFile == "" {
		return nil, fmt.Errorf("configuration was not loaded from a file")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// editors replace the file on save, so watch the directory too
	if err := fw.Add(filepath.Dir(cfg.ConfigFile)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:     cfg.ConfigFile,
		watcher:  fw,
		current:  cfg,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("configuration watcher stopped")
	})
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the latest valid configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file; an invalid file keeps the current configuration
func (w *Watcher) reload() {
	updated, err := LoadFrom(w.path)
	if err != nil {
		w.logger.Error("invalid configuration, keeping current", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = updated
	handlers := append([]ChangeHandler(nil), w.onChange...)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded",
		zap.String("path", w.path),
		zap.Bool("model_changed", ModelChanged(old, updated)),
	)

	for _, h := range handlers {
		h(old, updated)
	}
}

// ModelChanged reports whether the completion settings differ
func ModelChanged(old, updated *Config) bool {
	if old == nil || updated == nil {
		return old != updated
	}
	return old.Model != updated.Model
}
