package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alanlin8901/special-happiness/pkg/utils"
)

// Watcher calls a function after the matching files of a directory change.
// Bursts of events within the debounce delay trigger a single call.
type Watcher struct {
	dir        string
	extensions []string
	debounce   time.Duration
}

// NewWatcher creates a watcher for the files directly inside dir.
func NewWatcher(dir string, extensions []string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{dir: dir, extensions: extensions, debounce: debounce}
}

// Run blocks until ctx is done, calling onChange after each debounced burst.
// Calls never overlap; an error from onChange is logged and watching goes on.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	slog.Info("Watching for changes", "dir", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || (len(w.extensions) > 0 && !utils.HasExtension(event.Name, w.extensions)) {
				continue
			}
			slog.Debug("File changed", "file", event.Name, "op", event.Op.String())
			pending++
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", "dir", w.dir, "error", err)

		case <-timer.C:
			slog.Info("Detected changes", "dir", w.dir, "events", pending)
			pending = 0
			if err := onChange(ctx); err != nil {
				slog.Error("Re-ingestion failed", "dir", w.dir, "error", err)
			}
		}
	}
}
