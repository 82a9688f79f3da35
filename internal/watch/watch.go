// Package watch re-runs the YAML version updaters whenever the project
// __version__ file changes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/kokistudios/versioner/internal/bundle"
	"github.com/kokistudios/versioner/internal/version"
)

// debounceDelay coalesces the burst of events an editor save produces.
const debounceDelay = 300 * time.Millisecond

// Run watches the project's __version__ file and re-runs the YAML updaters on
// every change until ctx is cancelled. It calls onResults (if non-nil) after
// each pass.
//
// The watch is placed on the file's directory rather than the file itself:
// most editors save by writing a temp file and renaming it over the original,
// which would silently detach a file-level watch.
func Run(ctx context.Context, root string, backup bool, logger *log.Logger, onResults func([]bundle.Result)) error {
	versionFile, err := version.FindVersionFile(root)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(versionFile)); err != nil {
		return err
	}

	logger.Info("watching version file", "path", versionFile)

	var debounce *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(debounceDelay)
			fire = debounce.C
		} else {
			debounce.Reset(debounceDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher stopped")
			return nil

		case <-fire:
			results, err := bundle.UpdateAll(root, "", backup, false)
			if err != nil {
				logger.Error("update failed", "error", err)
				continue
			}
			for _, r := range results {
				logger.Info(r.Message)
			}
			if onResults != nil {
				onResults(results)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filepath.Base(versionFile) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", watchErr)
		}
	}
}
