package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleDoc struct {
	Name string `yaml:"name"`
}

func TestSaveLoadRoundTripsAndHashMatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yml")

	hash, err := Save(path, sampleDoc{Name: "alpine"})
	require.NoError(t, err)

	loaded, err := Load[sampleDoc](path)
	require.NoError(t, err)
	assert.Equal(t, "alpine", loaded.Doc.Name)
	assert.Equal(t, hash, loaded.Hash)
}

func TestHashIsDeterministic(t *testing.T) {
	h1, err := HashOf(sampleDoc{Name: "x"})
	require.NoError(t, err)
	h2, err := HashOf(sampleDoc{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := HashOf(sampleDoc{Name: "y"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestLoadMissingFileIsNoInput(t *testing.T) {
	_, err := Load[sampleDoc](filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, avatarerr.CodeNoInput, avatarerr.ExitCode(err))
}

func TestIsRegular(t *testing.T) {
	dir := t.TempDir()

	exists, regular, err := IsRegular(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.False(t, regular)

	filePath := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))
	exists, regular, err = IsRegular(filePath)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, regular)

	dirPath := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(dirPath, 0o755))
	exists, regular, err = IsRegular(dirPath)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, regular)
}
