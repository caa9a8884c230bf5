package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-loads the config file at path after every change and hands the
// result to onChange until ctx is done. A file that fails to load or validate
// is logged and skipped; onChange only ever sees valid configs.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return WatchFile(ctx, path, func() error {
		cfg, err := Load(path)
		if err != nil {
			return err
		}
		onChange(cfg)
		return nil
	})
}

// WatchFile calls reload every time path is written, created or replaced.
// The parent directory is watched rather than the file itself so that the
// file may be created after startup and atomic-save editors (rename over the
// original) keep working. A reload error is logged and otherwise ignored.
func WatchFile(ctx context.Context, path string, reload func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := reload(); err != nil {
				slog.Error("config: reload failed, keeping previous state",
					"path", abs, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", abs)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
