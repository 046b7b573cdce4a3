package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avatar-cli/avatar/internal/docstore"
	"github.com/avatar-cli/avatar/internal/layout"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFrontEnd(t *testing.T) {
	assert.True(t, IsFrontEnd("/usr/local/bin/avatar"))
	assert.True(t, IsFrontEnd("avatar-cli"))
	assert.False(t, IsFrontEnd("/home/dev/proj/.avatar-cli/volatile/bin/node"))
}

func TestMergeSettingsOverlaysOverrideOnTopOfDefaults(t *testing.T) {
	merged, err := mergeSettings(Settings{Debug: false}, Settings{Debug: true})
	require.NoError(t, err)
	assert.True(t, merged.Debug)
}

func TestShellSearchPathPrependsShimDirAndHostExtraPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(layout.ConfigDir(root), 0o755))

	lock := lockdoc.Lock{ShellConfig: &lockdoc.ShellConfig{ExtraPaths: []string{"tools/bin", "/opt/host-tools"}}}
	_, err := docstore.Save(layout.LockPath(root), lock)
	require.NoError(t, err)

	t.Setenv("PATH", "/usr/bin")
	got := shellSearchPath(root)

	assert.Contains(t, got, layout.ShimDir(root))
	assert.Contains(t, got, filepath.Join(root, "tools/bin"))
	assert.Contains(t, got, "/opt/host-tools")
	assert.Contains(t, got, "/usr/bin")
}
