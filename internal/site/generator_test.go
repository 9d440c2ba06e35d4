package site

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovacc/pagewright/internal/content"
)

type fakeSource struct {
	raw map[string]any
	err error
}

func (f *fakeSource) Export(context.Context) (*content.Snapshot, any, error) {
	if f.err != nil {
		return nil, nil, f.err
	}

	return content.FromTree(f.raw), f.raw, nil
}

func writeTestFile(t *testing.T, path, data string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func setupSourceDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	writeTestFile(t, filepath.Join(dir, "index.html"), string(loadTemplate(t)))
	writeTestFile(t, filepath.Join(dir, "styles.css"), "body{}")
	writeTestFile(t, filepath.Join(dir, "script.js"), "console.log(1)")
	writeTestFile(t, filepath.Join(dir, "images", "a.jpg"), "jpg")
	writeTestFile(t, filepath.Join(dir, "images", "sub", "b.png"), "png")
	writeTestFile(t, filepath.Join(dir, "images", ".DS_Store"), "junk")
	writeTestFile(t, filepath.Join(dir, "images", "node_modules", "x.js"), "x")
	writeTestFile(t, filepath.Join(dir, "admin.html"), "<html></html>")

	return dir
}

func newTestGenerator(t *testing.T, src Source) *Generator {
	t.Helper()

	dir := setupSourceDir(t)

	return &Generator{
		Source:       src,
		TemplatePath: filepath.Join(dir, "index.html"),
		SourceDir:    dir,
		OutputDir:    filepath.Join(t.TempDir(), "dist"),
		Assets:       []string{"styles.css", "script.js", "images", "fonts"},
		AdminFiles:   []string{"admin.html", "admin.js"},
	}
}

func TestBuild(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{raw: map[string]any{
		"hero": map[string]any{"title": "Built"},
	}})

	res, err := g.Build(context.Background())
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(g.OutputDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Built")
	assert.Contains(t, string(index), DataScriptID)
	assert.NotContains(t, string(index), "load-content.js")

	for _, name := range []string{"styles.css", "script.js", "images/a.jpg", "images/sub/b.png", "admin.html"} {
		assert.FileExists(t, filepath.Join(g.OutputDir, name))
	}

	assert.NoFileExists(t, filepath.Join(g.OutputDir, "images", ".DS_Store"))
	assert.NoDirExists(t, filepath.Join(g.OutputDir, "images", "node_modules"))

	redirects, err := os.ReadFile(filepath.Join(g.OutputDir, "_redirects"))
	require.NoError(t, err)
	assert.Equal(t, "/*    /index.html   200\n", string(redirects))

	// index, five copied files, _redirects
	assert.Equal(t, 7, res.Files)
	assert.Positive(t, res.Bytes)

	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "fonts")
	assert.Contains(t, joined, "admin.js")
}

func TestBuild_ReplacesPreviousOutput(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{raw: map[string]any{}})

	writeTestFile(t, filepath.Join(g.OutputDir, "stale.txt"), "old")

	_, err := g.Build(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(g.OutputDir, "stale.txt"))
	assert.FileExists(t, filepath.Join(g.OutputDir, "index.html"))
}

func TestBuild_SourceErrorIsFatal(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{err: errors.New("connection refused")})

	_, err := g.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch content")
	assert.NoDirExists(t, g.OutputDir)
}

func TestBuild_TemplateErrorIsFatal(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{raw: map[string]any{}})
	g.TemplatePath = filepath.Join(t.TempDir(), "missing.html")

	_, err := g.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read template")
}

func TestBuild_RefusesOutputOverSources(t *testing.T) {
	tests := []struct {
		name   string
		output func(g *Generator) string
	}{
		{"same as source", func(g *Generator) string { return g.SourceDir }},
		{"parent of source", func(g *Generator) string { return filepath.Dir(g.SourceDir) }},
		{"relative spelling of source", func(g *Generator) string { return filepath.Join(g.SourceDir, "images", "..") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, &fakeSource{raw: map[string]any{}})
			g.OutputDir = tt.output(g)

			_, err := g.Build(context.Background())
			require.ErrorIs(t, err, ErrUnsafeOutput)

			for _, name := range []string{"index.html", "styles.css", "images/a.jpg"} {
				assert.FileExists(t, filepath.Join(g.SourceDir, name))
			}
		})
	}
}

func TestBuild_RefusesOutputHoldingTemplate(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{raw: map[string]any{}})

	out := t.TempDir()
	tmpl := filepath.Join(out, "templates", "index.html")
	writeTestFile(t, tmpl, string(loadTemplate(t)))

	g.TemplatePath = tmpl
	g.OutputDir = out

	_, err := g.Build(context.Background())
	require.ErrorIs(t, err, ErrUnsafeOutput)
	assert.FileExists(t, tmpl)
}

func TestBuild_OutputInsideSourceIsAllowed(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{raw: map[string]any{}})
	g.OutputDir = filepath.Join(g.SourceDir, "dist")

	_, err := g.Build(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(g.OutputDir, "index.html"))
	assert.FileExists(t, filepath.Join(g.SourceDir, "styles.css"))
}

func TestBuild_EmptyContentKeepsDefaults(t *testing.T) {
	g := newTestGenerator(t, &fakeSource{})

	_, err := g.Build(context.Background())
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(g.OutputDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Default title")
	assert.Contains(t, string(index), "Default logo")
}

func TestGenerator_Ignored(t *testing.T) {
	out := t.TempDir()
	g := &Generator{OutputDir: out}

	assert.True(t, g.ignored(filepath.Join(out, "index.html")))
	assert.False(t, g.ignored(filepath.Join(filepath.Dir(out), "styles.css")))
}
