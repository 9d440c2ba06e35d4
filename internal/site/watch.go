package site

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch rebuilds the site whenever the template or an asset changes on
// disk, or when a value arrives on changed (content updates). It blocks
// until ctx is done. Failed rebuilds are logged and watching continues.
func (g *Generator) Watch(ctx context.Context, changed <-chan struct{}) error {
	logger := g.logger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() { _ = watcher.Close() }()

	dirs := map[string]bool{filepath.Dir(g.TemplatePath): true}
	for _, name := range g.assets() {
		dirs[filepath.Dir(filepath.Join(g.SourceDir, name))] = true
		dirs[filepath.Join(g.SourceDir, name)] = true
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Debug("not watching", "path", dir, "error", err)
		}
	}

	var (
		timer   *time.Timer
		rebuild = make(chan struct{}, 1)
	)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(watchDebounce, func() {
			select {
			case rebuild <- struct{}{}:
			default:
			}
		})
	}

	logger.Info("watching for changes", "template", g.TemplatePath)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if g.ignored(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
				schedule()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("watcher error", "error", err)
		case <-changed:
			schedule()
		case <-rebuild:
			if _, err := g.Build(ctx); err != nil {
				logger.Error("rebuild failed", "error", err)
			}
		}
	}
}

// ignored reports whether path lies inside the output directory, which the
// build itself rewrites.
func (g *Generator) ignored(path string) bool {
	out, err := filepath.Abs(g.OutputDir)
	if err != nil {
		return false
	}

	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(out, p)

	return err == nil && filepath.IsLocal(rel)
}
