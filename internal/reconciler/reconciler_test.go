package reconciler

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/avatar-cli/avatar/internal/docstore"
	"github.com/avatar-cli/avatar/internal/imageresolver"
	"github.com/avatar-cli/avatar/internal/lockcompiler"
	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestReconcileIsNoOpWhenNothingChanged(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ManifestPath: filepath.Join(dir, "Avatarfile"),
		LockPath:     filepath.Join(dir, "Avatarfile.lock"),
		StatePath:    filepath.Join(dir, "state.yml"),
	}

	man := manifest.Manifest{AvatarVersion: "0.1", ProjectInternalID: "abc1234567890123"}
	_, err := docstore.Save(paths.ManifestPath, man)
	require.NoError(t, err)

	compiler := &lockcompiler.Compiler{
		Resolver: &imageresolver.Resolver{Log: discardLog()},
		Log:      discardLog(),
	}
	rec := &Reconciler{Compiler: compiler, Log: discardLog()}

	first, err := rec.Reconcile(paths)
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := rec.Reconcile(paths)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.State.ProjectConfigHash, second.State.ProjectConfigHash)
}

func TestReconcileRegeneratesOnManifestDrift(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ManifestPath: filepath.Join(dir, "Avatarfile"),
		LockPath:     filepath.Join(dir, "Avatarfile.lock"),
		StatePath:    filepath.Join(dir, "state.yml"),
	}

	man := manifest.Manifest{AvatarVersion: "0.1", ProjectInternalID: "abc1234567890123"}
	_, err := docstore.Save(paths.ManifestPath, man)
	require.NoError(t, err)

	compiler := &lockcompiler.Compiler{
		Resolver: &imageresolver.Resolver{Log: discardLog()},
		Log:      discardLog(),
	}
	rec := &Reconciler{Compiler: compiler, Log: discardLog()}

	first, err := rec.Reconcile(paths)
	require.NoError(t, err)

	man.AvatarVersion = "0.2"
	_, err = docstore.Save(paths.ManifestPath, man)
	require.NoError(t, err)

	second, err := rec.Reconcile(paths)
	require.NoError(t, err)
	assert.True(t, second.Changed)
	assert.NotEqual(t, first.Lock.ProjectConfigHash, second.Lock.ProjectConfigHash)
}
