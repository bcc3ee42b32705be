package handler

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay groups the burst of events an editor produces for one save.
const reloadDelay = 100 * time.Millisecond

// WatchDir re-parses the views whenever an .html file under dir changes.
// dir must be the directory the Renderer was created from. It blocks until
// ctx is cancelled.
func (r *Renderer) WatchDir(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating template watcher: %w", err)
	}
	defer watcher.Close()

	// fsnotify is not recursive, so every subdirectory (books/) is added.
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	r.logger.Info("watching templates for changes", slog.String("dir", dir))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".html" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("template watcher error", slog.String("error", err.Error()))

		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				// Keep serving the last good set until the file is fixed.
				r.logger.Error("template reload failed", slog.String("error", err.Error()))
				continue
			}
			r.logger.Info("templates reloaded")
		}
	}
}
