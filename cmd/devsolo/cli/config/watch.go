package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/logging"
	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
)

// Watch reloads the configuration when the config file changes on disk and
// delivers the new value to onReload. Configuration is otherwise immutable
// after load; this is the only reload path.
//
// Watch blocks until ctx is cancelled. Errors from the watcher are logged and
// swallowed: a broken watcher must not take down a long-running server.
func Watch(ctx context.Context, onReload func(*Config)) error {
	cfgPath, err := paths.ConfigFile()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic saves replace the file by
	// rename, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(cfgPath)); err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}

	ctx = logging.WithComponent(ctx, "config")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(cfgPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := LoadFrom(cfgPath)
			if err != nil {
				logging.Warn(ctx, "config reload failed", "error", err.Error())
				continue
			}
			logging.Info(ctx, "config reloaded")
			onReload(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "config watcher error", "error", err.Error())
		}
	}
}
