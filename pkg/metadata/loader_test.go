package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "age-in-months.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScalar(t *testing.T) {
	value, err := Load(writeFile(t, "42\n"))
	require.NoError(t, err)
	assert.Equal(t, json.Number("42"), value)
}

func TestLoadObject(t *testing.T) {
	value, err := Load(writeFile(t, `{"age": 18, "eyes": ["left", "right"], "notes": null}`))
	require.NoError(t, err)

	obj, ok := value.(map[string]any)
	require.True(t, ok, "expected an object, got %T", value)
	assert.Equal(t, json.Number("18"), obj["age"])
	assert.Equal(t, []any{"left", "right"}, obj["eyes"])
	assert.Contains(t, obj, "notes")
	assert.Nil(t, obj["notes"])
}

func TestLoadMalformed(t *testing.T) {
	testCases := map[string]string{
		"empty":     "",
		"truncated": `{"age": `,
		"trailing":  `{"age": 1} {"age": 2}`,
		"not json":  "forty-two",
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, content))
			assert.ErrorIs(t, err, ErrMalformedMetadata)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}
