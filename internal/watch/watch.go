// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch reloads a LaTeX source file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/texpreview/internal/source"
)

// File watches path and calls fn with the file's contents after every write
// or re-creation. The parent directory is watched so editors that save by
// renaming a temp file over the original are still seen. File blocks until
// ctx is cancelled.
func File(ctx context.Context, path string, fn func(string)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, target) {
				continue
			}
			text, err := source.Load(target)
			if err != nil {
				slog.WarnContext(ctx, "reload failed", "path", target, "err", err)
				continue
			}
			slog.DebugContext(ctx, "source changed", "path", target, "op", ev.Op.String())
			fn(text)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "watcher error", "err", err)
		}
	}
}

func relevant(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
