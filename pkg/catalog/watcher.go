// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultReloadDebounce = 250 * time.Millisecond

// Watcher reloads a Registry whenever its YAML source file changes.
// A file that fails to parse leaves the previous catalog in place.
type Watcher struct {
	path     string
	registry *Registry
	debounce time.Duration
}

// NewWatcher creates a watcher for path feeding registry.
func NewWatcher(path string, registry *Registry) *Watcher {
	return &Watcher{
		path:     path,
		registry: registry,
		debounce: defaultReloadDebounce,
	}
}

// Reload re-reads the file and swaps the registry contents.
func (w *Watcher) Reload() error {
	file, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	if err := w.registry.Replace(file.Rules); err != nil {
		return err
	}
	logrus.Infof("reloaded rule catalog from %s (%d rules)", w.path, len(file.Rules))
	return nil
}

// Run watches the catalog directory until ctx is cancelled.
// Editors often replace files instead of writing in place, so the parent
// directory is watched and events are filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logrus.Infof("watching rule catalog %s for changes", w.path)

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				logrus.Warnf("catalog reload failed, keeping previous catalog: %v", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logrus.Warnf("catalog watcher error: %v", err)
		}
	}
}
