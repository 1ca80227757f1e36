package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectImagePaths_Directory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.JPG", "c.webp", "notes.txt", "d.bin"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	paths, err := collectImagePaths([]string{dir})
	require.NoError(t, err)

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	assert.ElementsMatch(t, []string{"a.png", "b.JPG", "c.webp"}, names)
}

func TestCollectImagePaths_FilesPassThrough(t *testing.T) {
	dir := t.TempDir()
	// Explicit file arguments skip the extension filter
	path := filepath.Join(dir, "raw.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	paths, err := collectImagePaths([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestCollectImagePaths_Missing(t *testing.T) {
	_, err := collectImagePaths([]string{"/nonexistent/path.png"})
	assert.Error(t, err)
}
