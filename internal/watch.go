package internal

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchConfig watches the config file for changes and calls onChange
// after each write, debounced so editors that write in several steps
// trigger a single reload. Watching the parent directory instead of the
// file survives atomic rename-style saves.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("config watcher: started", slog.String("path", path))

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	scheduleReload := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(200 * time.Millisecond)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-debounceCh:
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				logger.Debug("config watcher: change detected", slog.String("op", ev.Op.String()))
				scheduleReload()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher: error", slog.String("error", werr.Error()))
		}
	}
}
