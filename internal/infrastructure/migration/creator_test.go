package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"add legal case index": "add_legal_case_index",
		"Add-Penalty-Columns":  "add_penalty_columns",
		"  spaces  ":           "spaces",
		"loans__v2":            "loans_v2",
		"special!@#chars":      "special_chars",
		"_edge_":               "edge",
		"":                     "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, slugify(in))
		})
	}
}

func TestCreate_NumbersAfterHighestVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init_lending.up.sql"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init_lending.down.sql"), nil, 0o644))

	f, err := Create(dir, "Add collections notes", "Free text notes per loan")
	require.NoError(t, err)

	assert.Equal(t, uint(2), f.Version)
	assert.Equal(t, filepath.Join(dir, "000002_add_collections_notes.up.sql"), f.UpPath)
	assert.Equal(t, filepath.Join(dir, "000002_add_collections_notes.down.sql"), f.DownPath)

	up, err := os.ReadFile(f.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- add_collections_notes (up)")
	assert.Contains(t, string(up), "-- Free text notes per loan")

	down, err := os.ReadFile(f.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(down)")
}

func TestCreate_EmptyDirectoryStartsAtOne(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	f, err := Create(dir, "init", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), f.Version)
	assert.FileExists(t, f.UpPath)

	up, err := os.ReadFile(f.UpPath)
	require.NoError(t, err)
	assert.NotContains(t, string(up), "-- \n")
}

func TestCreate_RejectsUnusableName(t *testing.T) {
	_, err := Create(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_notes.up.sql",
		"000001_init_lending.up.sql",
		"000001_init_lending.down.sql",
		"README.md",
		"not_a_migration.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

	files, err := List(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, uint(1), files[0].Version)
	assert.Equal(t, "init_lending", files[0].Name)
	assert.True(t, files[0].HasDown())

	assert.Equal(t, uint(2), files[1].Version)
	assert.False(t, files[1].HasDown())
}

func TestList_MissingDirectory(t *testing.T) {
	files, err := List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := List(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		assert.True(t, f.HasDown(), "migration %d has no down script", f.Version)
	}
}
