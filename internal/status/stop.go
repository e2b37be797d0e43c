package status

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// StopFlag is the cooperative cancellation flag the planner polls at each
// manifest-walk step. It is raised out-of-band, typically by a UI touching
// a stop-request file.
type StopFlag struct {
	raised atomic.Bool
}

// Set raises the flag.
func (f *StopFlag) Set() {
	f.raised.Store(true)
}

// Requested reports whether a stop has been requested.
func (f *StopFlag) Requested() bool {
	return f.raised.Load()
}

// WatchFile raises the flag when the file at path appears. It blocks until
// ctx is done and is intended to run in its own goroutine.
func (f *StopFlag) WatchFile(ctx context.Context, path string, logger *slog.Logger) {
	// The file may predate this run.
	if _, err := os.Stat(path); err == nil {
		logger.Info("stop request file present", slog.String("path", path))
		f.Set()
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("stop watcher unavailable", slog.String("error", err.Error()))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("stop watcher dir", slog.String("error", err.Error()))
		return
	}
	if err := watcher.Add(dir); err != nil {
		logger.Warn("stop watcher add", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name == path && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				logger.Info("stop requested", slog.String("path", path))
				f.Set()
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("stop watcher error", slog.String("error", err.Error()))
		}
	}
}
