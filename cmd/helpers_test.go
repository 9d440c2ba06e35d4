package cmd

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaimValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"editor", "editor"},
		{`{"team":"web"}`, map[string]any{"team": "web"}},
		{`["a","b"]`, []any{"a", "b"}},
		{`"quoted"`, "quoted"},
		{"{not json", "{not json"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, parseClaimValue(tt.in)); diff != "" {
				t.Errorf("parseClaimValue(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestFormatClaims(t *testing.T) {
	assert.Equal(t, "{}", formatClaims(nil))
	assert.Equal(t, "{admin=true, role=admin}", formatClaims(map[string]any{"role": "admin", "admin": true}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		on    slog.Level
		off   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"WARN", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := newLogger(tt.level)
			assert.True(t, l.Enabled(t.Context(), tt.on))
			assert.False(t, l.Enabled(t.Context(), tt.off))
		})
	}
}

func TestCommandTree(t *testing.T) {
	want := [][]string{
		{"serve"},
		{"build"},
		{"publish"},
		{"publish", "history"},
		{"user", "create"},
		{"user", "list"},
		{"claims", "set"},
		{"claims", "remove"},
		{"claims", "get"},
		{"claims", "list"},
		{"claims", "admin"},
		{"claims", "unadmin"},
		{"content", "export"},
		{"content", "import"},
		{"content", "show"},
		{"notify", "test"},
	}

	for _, path := range want {
		c, _, err := GetRootCmd().Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], c.Name())
	}
}

func TestConfigFlags(t *testing.T) {
	flags := configFlags(serveCmd)

	assert.Contains(t, flags, "server.host")
	assert.Contains(t, flags, "server.port")
	assert.NotContains(t, flags, "site.output_dir")

	flags = configFlags(buildCmd)
	assert.Contains(t, flags, "site.output_dir")
	assert.Contains(t, flags, "site.template")
}
