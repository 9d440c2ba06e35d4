package encoding

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "export.json")

	in := map[string]any{"hero": map[string]any{"title": "Hi", "order": 3}}
	require.NoError(t, SaveJSON(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	out, err := LoadJSON[map[string]any](path)
	require.NoError(t, err)

	hero := (*out)["hero"].(map[string]any)
	assert.Equal(t, "Hi", hero["title"])
	assert.Equal(t, json.Number("3"), hero["order"])
}

func TestLoadJSON_Missing(t *testing.T) {
	out, err := LoadJSON[map[string]any](filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON[map[string]any]([]byte("{"))
	require.Error(t, err)
}
