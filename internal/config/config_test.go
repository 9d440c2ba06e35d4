package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()

	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	return p
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAGEWRIGHT_DATA_DIR", dir)

	cfg, err := Load(Options{SearchDirs: []string{dir}})
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "commit", cfg.Publish.Strategy)
	assert.Equal(t, "main", cfg.Publish.Branch)
	assert.Equal(t, "dist", cfg.Site.OutputDir)
	assert.Equal(t, filepath.Join(".", "index.html"), cfg.Site.TemplatePath())
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "content.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(cfg.DataDir, "auth.secret"), cfg.SecretFile())
}

func TestLoad_JSONCFile(t *testing.T) {
	dir := t.TempDir()

	writeConfig(t, dir, `{
		// local data lives next to the site
		"data_dir": "`+filepath.ToSlash(dir)+`",
		"server": {"port": 9090},
		"auth": {"token_ttl": "2h"},
		"site": {
			"source_dir": "web",
			"assets": ["styles.css", "images"], // trailing comma is fine
		},
		"publish": {"strategy": "dispatch", "owner": "acme", "repo": "site"},
	}`)

	cfg, err := Load(Options{SearchDirs: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, FileName), cfg.File)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"styles.css", "images"}, cfg.Site.Assets)
	assert.Equal(t, filepath.Join("web", "index.html"), cfg.Site.TemplatePath())
	assert.Equal(t, "dispatch", cfg.Publish.Strategy)
	assert.Equal(t, filepath.Join(dir, "users.db"), cfg.Auth.UsersDB)
}

func TestLoad_EnvAndFlagsOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"server": {"port": 9090, "host": "0.0.0.0"}, "data_dir": "`+filepath.ToSlash(dir)+`"}`)

	t.Setenv("PAGEWRIGHT_SERVER_HOST", "localhost")
	t.Setenv("PAGEWRIGHT_CLOUDINARY_CLOUD_NAME", "demo")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	require.NoError(t, flags.Parse([]string{"--port", "7000"}))

	cfg, err := Load(Options{Path: path, Flags: map[string]*pflag.Flag{"server.port": flags.Lookup("port")}})
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "demo", cfg.Cloudinary.CloudName)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"bad jsonc", `{"server": `},
		{"unknown backend", `{"store": {"backend": "mongo"}}`},
		{"rtdb without url", `{"store": {"backend": "rtdb"}}`},
		{"unknown strategy", `{"publish": {"strategy": "ftp"}}`},
		{"unknown log level", `{"log_level": "loud"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)

			_, err := Load(Options{Path: path})
			require.Error(t, err)
		})
	}

	_, err := Load(Options{Path: filepath.Join(dir, "missing.jsonc")})
	require.Error(t, err)
}
