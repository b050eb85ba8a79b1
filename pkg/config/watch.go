package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads the overlay at path whenever it is written, created or
// renamed into place, and passes each valid result to onChange. Invalid
// files are logged and ignored. Watch returns once the watcher is running;
// it stops when ctx is done.
func Watch(ctx context.Context, path string, logger logrus.FieldLogger, onChange func(*Config)) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors and config-map mounts replace the file
	// rather than writing it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.WithError(err).Warn("Ignoring invalid config reload")
					continue
				}
				logger.WithField("path", path).Info("Configuration reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Config watcher error")
			}
		}
	}()
	return nil
}
