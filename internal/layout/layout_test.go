package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathsAreRootedUnderConfigDir(t *testing.T) {
	root := "/home/dev/proj"
	assert.Equal(t, "/home/dev/proj/.avatar-cli/Avatarfile", ManifestPath(root))
	assert.Equal(t, "/home/dev/proj/.avatar-cli/Avatarfile.lock", LockPath(root))
	assert.Equal(t, "/home/dev/proj/.avatar-cli/volatile/state.yml", StatePath(root))
	assert.Equal(t, "/home/dev/proj/.avatar-cli/volatile/bin", ShimDir(root))
	assert.Equal(t, "/home/dev/proj/.avatar-cli/volatile/home", HomeDir(root))
}

func TestImagePasswdPath(t *testing.T) {
	got := ImagePasswdPath("/proj", "alpine@sha256:abc123")
	assert.Equal(t, "/proj/.avatar-cli/volatile/images/alpine@sha256:abc123/passwd", got)
}

func TestProjectIDLabel(t *testing.T) {
	assert.Equal(t, "abc123.byid.projects.avatar-cli", ProjectIDLabel("abc123"))
}
