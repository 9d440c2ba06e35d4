// Package site builds the deployable static site: one content snapshot is
// spliced into the HTML template, the runtime loaders are dropped and the
// static assets are copied next to the generated index.html.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"

	"github.com/inovacc/pagewright/internal/content"
)

// DefaultAssets are copied from the source directory when none are configured.
var DefaultAssets = []string{"styles.css", "script.js", "images", "fonts", "assets"}

// DefaultAdminFiles keep the admin panel reachable from the deployed site.
var DefaultAdminFiles = []string{"admin.html", "admin.css", "admin.js"}

// redirects is the catch-all rule for single-page hosting.
const redirects = "/*    /index.html   200\n"

// Source provides the content snapshot and the raw tree it came from.
type Source interface {
	Export(ctx context.Context) (*content.Snapshot, any, error)
}

// Generator produces the output tree.
type Generator struct {
	Source       Source
	TemplatePath string
	SourceDir    string
	OutputDir    string
	Assets       []string
	AdminFiles   []string
	Logger       *slog.Logger
}

// Result summarizes a build.
type Result struct {
	OutputDir string
	Files     int
	Bytes     int64
	Warnings  []string
	Duration  time.Duration
}

func (r *Result) warn(logger *slog.Logger, msg, path string, err error) {
	if err != nil {
		logger.Warn(msg, "path", path, "error", err)
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s: %v", msg, path, err))

		return
	}

	logger.Warn(msg, "path", path)
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", msg, path))
}

// Build fetches content once and writes the output tree. Failing to read
// content or the template aborts; missing anchors and assets are warnings.
func (g *Generator) Build(ctx context.Context) (*Result, error) {
	start := time.Now()

	logger := g.logger()
	res := &Result{OutputDir: g.OutputDir}

	logger.Info("fetching content")

	snap, raw, err := g.Source.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}

	page, err := os.ReadFile(g.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	splicer := &Splicer{Logger: logger}

	doc, warnings, err := splicer.Splice(page, snap, raw)
	if err != nil {
		return nil, err
	}

	res.Warnings = append(res.Warnings, warnings...)

	if err := g.checkOutputDir(); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(g.OutputDir); err != nil {
		return nil, fmt.Errorf("clean output: %w", err)
	}

	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	if err := writeFile(filepath.Join(g.OutputDir, "index.html"), doc); err != nil {
		return nil, fmt.Errorf("write index.html: %w", err)
	}

	res.Files++
	res.Bytes += int64(len(doc))

	for _, name := range g.assets() {
		src := filepath.Join(g.SourceDir, name)

		files, size, err := copyTree(src, filepath.Join(g.OutputDir, name))
		switch {
		case errors.Is(err, os.ErrNotExist):
			res.warn(logger, "asset not found, skipping", src, nil)
		case err != nil:
			res.warn(logger, "asset copy failed", src, err)
		default:
			res.Files += files
			res.Bytes += size
		}
	}

	if err := writeFile(filepath.Join(g.OutputDir, "_redirects"), []byte(redirects)); err != nil {
		return nil, fmt.Errorf("write _redirects: %w", err)
	}

	res.Files++
	res.Duration = time.Since(start)

	logger.Info("site built",
		"output", g.OutputDir,
		"files", res.Files,
		"size", humanize.Bytes(uint64(res.Bytes)),
		"warnings", len(res.Warnings),
		"took", res.Duration.Round(time.Millisecond),
	)

	return res, nil
}

// ErrUnsafeOutput is returned when cleaning the output directory would
// delete the sources.
var ErrUnsafeOutput = errors.New("output directory would remove the site sources")

// checkOutputDir refuses an output directory that is, or contains, the
// source directory or the template.
func (g *Generator) checkOutputDir() error {
	out, err := filepath.Abs(g.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}

	for _, p := range []string{g.SourceDir, g.TemplatePath} {
		if p == "" {
			continue
		}

		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}

		if within(out, abs) {
			return fmt.Errorf("%w: %s contains %s", ErrUnsafeOutput, g.OutputDir, p)
		}
	}

	return nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)

	return err == nil && (rel == "." || filepath.IsLocal(rel))
}

// writeFile replaces path atomically and leaves it world-readable.
func writeFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}

	return os.Chmod(path, 0o644)
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}

	return g.Logger
}

// assets returns the configured assets followed by the admin files.
func (g *Generator) assets() []string {
	assets := g.Assets
	if assets == nil {
		assets = DefaultAssets
	}

	admin := g.AdminFiles
	if admin == nil {
		admin = DefaultAdminFiles
	}

	return append(append([]string{}, assets...), admin...)
}
