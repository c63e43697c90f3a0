package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIndex(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFilename), []byte(contents), 0o644))
	return dir
}

func TestParseShardIndex(t *testing.T) {
	dir := writeIndex(t, `{
		"metadata": {"total_size": 123},
		"weight_map": {
			"z.weight": "model-00002-of-00002.safetensors",
			"a.weight": "model-00001-of-00002.safetensors",
			"m.weight": "model-00002-of-00002.safetensors"
		}
	}`)

	si, err := ParseShardIndex(dir)
	require.NoError(t, err)

	// document order, not sorted
	assert.Equal(t, []ShardIndexEntry{
		{Name: "z.weight", Shard: "model-00002-of-00002.safetensors"},
		{Name: "a.weight", Shard: "model-00001-of-00002.safetensors"},
		{Name: "m.weight", Shard: "model-00002-of-00002.safetensors"},
	}, si.Entries())
	assert.Equal(t, 3, si.Len())
}

func TestParseShardIndexNotFound(t *testing.T) {
	_, err := ParseShardIndex(t.TempDir())
	require.ErrorIs(t, err, ErrIndexNotFound)
}

func TestParseShardIndexMalformed(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"not json", "not json at all"},
		{"top-level array", `["weight_map"]`},
		{"missing weight_map", `{"metadata": {}}`},
		{"weight_map not object", `{"weight_map": ["a"]}`},
		{"shard not string", `{"weight_map": {"a.weight": 7}}`},
		{"duplicate tensor name", `{"weight_map": {"a.weight": "s1", "a.weight": "s2"}}`},
		{"duplicate weight_map", `{"weight_map": {"a.weight": "s1"}, "weight_map": {"b.weight": "s2"}}`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseShardIndex(writeIndex(t, tt.contents))
			require.ErrorIs(t, err, ErrIndexMalformed)
		})
	}
}
