package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tordrt/erdschema/internal/config"
	"github.com/tordrt/erdschema/internal/logging"
)

// debounceDelay coalesces the bursts of events editors produce on save.
const debounceDelay = 100 * time.Millisecond

// watch re-renders a job whenever its script file changes, until ctx is done.
// Render failures are logged and the previous output is kept.
func watch(ctx context.Context, cfg *config.Config, jobs []job, report func(string)) error {
	logger := logging.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Directories are watched rather than files so that editors replacing the file
	// on save keep triggering events.
	byPath := make(map[string]job, len(jobs))
	dirs := make(map[string]bool)
	for _, j := range jobs {
		abs, err := filepath.Abs(j.input)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", j.input, err)
		}
		byPath[abs] = j
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logger.Info("watching for changes", "files", len(byPath))

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			j, ok := byPath[path]
			if !ok {
				continue
			}

			mu.Lock()
			if t := timers[path]; t != nil && t.Stop() {
				wg.Done()
			}
			wg.Add(1)
			timers[path] = time.AfterFunc(debounceDelay, func() {
				defer wg.Done()
				logger.Info("change detected", "file", filepath.Base(path))
				out, err := render(ctx, cfg, j)
				if err != nil {
					logger.Error("render failed", "file", j.input, "error", err)
					return
				}
				report(out)
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
