package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Swind/go-taskqueue/core"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path     string
	logger   core.Logger
	debounce time.Duration
	onChange func(*Config)
}

// NewWatcher creates a watcher that calls onChange with every successfully
// reloaded config. Invalid files are logged and skipped.
func NewWatcher(path string, logger core.Logger, onChange func(*Config)) *Watcher {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Watcher{
		path:     path,
		logger:   logger,
		debounce: defaultDebounce,
		onChange: onChange,
	}
}

// Run watches until ctx is done. The parent directory is watched so editors
// that replace the file via rename are handled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch init: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("config watch add %s: %w", dir, err)
	}
	w.logger.Debug("config watcher started", core.F("dir", dir), core.F("file", file))

	// Reloads run on this goroutine, one at a time. The debounce timer only
	// arms the fire channel.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watch error", core.F("err", err), core.F("dir", dir))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", core.F("path", w.path), core.F("err", err))
		return
	}
	w.logger.Info("config reloaded", core.F("path", w.path), core.F("queues", len(cfg.Queues)))
	w.onChange(cfg)
}
