package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avatar-cli/avatar/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateFindsAncestorManifest(t *testing.T) {
	root := t.TempDir()
	configDir := layout.ConfigDir(root)
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(layout.ManifestPath(root), []byte("avatarVersion: \"0.1\"\n"), 0o644))

	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, ok, err := Locate(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root, found)
}

func TestLocateReturnsNotFoundOutsideProject(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := Locate(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInside(t *testing.T) {
	assert.True(t, IsInside("/proj", "/proj"))
	assert.True(t, IsInside("/proj", "/proj/src"))
	assert.False(t, IsInside("/proj", "/other"))
}

func TestToRelative(t *testing.T) {
	rel, err := ToRelative("/proj", "/proj/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "src/main.go", rel)
}
