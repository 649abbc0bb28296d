package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long the file must stay quiet before it is re-read. Editors often write a file in
// several steps.
const watchSettle = 100 * time.Millisecond

// Watch reloads the configuration file whenever it changes and hands the result to onChange until ctx
// is done. An invalid file is reported through the error argument and the previous configuration
// stays in effect for the caller to decide.
//
// The directory is watched rather than the file, so editors that replace the file by renaming keep
// triggering reloads.
//
// Parameters:
//   - ctx: stops the watcher when done
//   - path: the TOML file
//   - onChange: called from the watcher goroutine with the new configuration or a load error
//
// Returns:
//   - error: error if the watcher cannot be started
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		settle := time.NewTimer(watchSettle)
		settle.Stop()
		for {
			select {
			case <-ctx.Done():
				settle.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					settle.Reset(watchSettle)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				common.Logger().Warn("config watcher error", "path", abs, "error", err)
			case <-settle.C:
				cfg, err := Load(abs)
				if err == nil {
					common.Logger().Info("config reloaded", "path", abs)
				}
				onChange(cfg, err)
			}
		}
	}()
	return nil
}
