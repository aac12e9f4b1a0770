package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDocument(t *testing.T) {
	t.Run("reads both blocks", func(t *testing.T) {
		path := writeFile(t, "meta.yml", `immutable_data:
  owner: alice
  region: eu
mutable_data:
  status: draft
  retries: 2
`)
		doc, err := LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"owner": "alice", "region": "eu"}, doc.ImmutableData)
		assert.Equal(t, map[string]any{"status": "draft", "retries": 2}, doc.MutableData)
	})

	t.Run("accepts JSON", func(t *testing.T) {
		path := writeFile(t, "meta.json", `{"immutable_data": {"owner": "bob"}}`)
		doc, err := LoadDocument(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"owner": "bob"}, doc.ImmutableData)
		assert.Nil(t, doc.MutableData)
	})

	t.Run("rejects non-mapping document", func(t *testing.T) {
		path := writeFile(t, "list.yml", "- a\n- b\n")
		_, err := LoadDocument(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a mapping")
	})

	t.Run("rejects non-mapping block", func(t *testing.T) {
		path := writeFile(t, "bad.yml", "immutable_data: [1, 2]\n")
		_, err := LoadDocument(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "immutable_data must be a mapping")
	})

	t.Run("reports invalid YAML", func(t *testing.T) {
		path := writeFile(t, "broken.yml", "immutable_data: [unclosed\n")
		_, err := LoadDocument(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("reports missing file", func(t *testing.T) {
		_, err := LoadDocument("/nonexistent/meta.yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read metadata file")
	})
}

func TestParseMap(t *testing.T) {
	t.Run("empty document", func(t *testing.T) {
		m, err := ParseMap(nil)
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("non-string keys become strings", func(t *testing.T) {
		m, err := ParseMap([]byte("codes:\n  1: one\n  2: two\n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"1": "one", "2": "two"}, m["codes"])

		_, err = json.Marshal(m)
		assert.NoError(t, err)
	})
}

func TestParseAssignments(t *testing.T) {
	m, err := ParseAssignments([]string{
		"name=widget",
		"count=3",
		"ratio=0.5",
		"enabled=true",
		"url=https://example.com/a?b=c",
		"empty=",
		"note=a: b",
		"none=null",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":    "widget",
		"count":   3,
		"ratio":   0.5,
		"enabled": true,
		"url":     "https://example.com/a?b=c",
		"empty":   "",
		"note":    "a: b",
		"none":    nil,
	}, m)

	for _, bad := range []string{"novalue", "=value", " =x"} {
		_, err := ParseAssignments([]string{bad})
		assert.Error(t, err, "input %q", bad)
	}
}

func TestMerge(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	out := Merge(base, map[string]any{"b": 3, "c": 4})
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, out)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, base)
}
