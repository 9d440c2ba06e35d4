package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secret")

	t.Run("config wins", func(t *testing.T) {
		t.Setenv("PW_TEST_SECRET", "from-env")

		s, err := NewResolver("secret").WithValue("from-config").WithEnv("PW_TEST_SECRET").Resolve()
		require.NoError(t, err)
		assert.Equal(t, "from-config", s.Value)
		assert.Equal(t, SourceConfig, s.Source)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("PW_TEST_SECRET", "from-env")

		s, err := NewResolver("secret").WithValue("").WithEnv("PW_UNSET", "PW_TEST_SECRET").Resolve()
		require.NoError(t, err)
		assert.Equal(t, "from-env", s.Value)
		assert.Equal(t, "PW_TEST_SECRET", s.Name)
	})

	t.Run("generated then file", func(t *testing.T) {
		s, err := NewResolver("secret").WithFile(file).WithGenerated(file).Resolve()
		require.NoError(t, err)
		assert.Equal(t, SourceGenerated, s.Source)
		assert.Len(t, s.Value, 64)

		info, err := os.Stat(file)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		again, err := NewResolver("secret").WithFile(file).WithGenerated(file).Resolve()
		require.NoError(t, err)
		assert.Equal(t, SourceFile, again.Source)
		assert.Equal(t, s.Value, again.Value)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := NewResolver("publish token").WithEnv("PW_UNSET").Resolve()
		require.EqualError(t, err, "publish token is required")
	})
}
