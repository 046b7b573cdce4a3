package runconfig

import (
	"testing"

	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRejectsForbiddenPath(t *testing.T) {
	type scenario struct {
		name    string
		base    *manifest.RunConfig
		overlay *manifest.RunConfig
		shell   *manifest.ShellConfig
	}

	scenarios := []scenario{
		{
			name:    "env PATH on base",
			base:    &manifest.RunConfig{Env: map[string]string{"PATH": "/x"}},
			overlay: nil,
		},
		{
			name:    "env PATH on overlay",
			base:    nil,
			overlay: &manifest.RunConfig{Env: map[string]string{"PATH": "/x"}},
		},
		{
			name:  "shell env PATH",
			shell: &manifest.ShellConfig{Env: map[string]string{"PATH": "/x"}},
		},
		{
			name:    "envFromHost PATH",
			overlay: &manifest.RunConfig{EnvFromHost: []string{"PATH"}},
		},
	}

	for _, s := range scenarios {
		_, err := Merge(s.base, s.overlay, s.shell, Context{}, nil)
		require.Error(t, err, s.name)
	}
}

func TestMergeAbsentInputsReturnAbsent(t *testing.T) {
	frozen, err := Merge(nil, nil, nil, Context{}, nil)
	require.NoError(t, err)
	assert.Nil(t, frozen)
}

func TestMergeEnvOverlayWinsOverBase(t *testing.T) {
	base := &manifest.RunConfig{Env: map[string]string{"A": "base", "B": "base"}}
	overlay := &manifest.RunConfig{Env: map[string]string{"B": "overlay"}}

	frozen, err := Merge(base, overlay, nil, Context{}, nil)
	require.NoError(t, err)
	require.NotNil(t, frozen)
	assert.Equal(t, "base", frozen.Env["A"])
	assert.Equal(t, "overlay", frozen.Env["B"])
}

func TestMergeShellEnvSitsBeneathPerBinaryEnv(t *testing.T) {
	overlay := &manifest.RunConfig{Env: map[string]string{"A": "binary"}}
	shell := &manifest.ShellConfig{Env: map[string]string{"A": "shell", "B": "shell"}}

	frozen, err := Merge(nil, overlay, shell, Context{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "binary", frozen.Env["A"])
	assert.Equal(t, "shell", frozen.Env["B"])
}

func TestSynthesizeShellPathRebasesRelativeAndDropsAbsolute(t *testing.T) {
	shell := &manifest.ShellConfig{ExtraPaths: []string{"bin", "/usr/local/host-bin"}}

	lookup := func(imageRef string) (string, error) {
		return "/usr/bin:/bin", nil
	}

	frozen, err := Merge(nil, nil, shell, Context{ImageName: "alpine", Tag: "3.18"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "/playground/bin:/usr/bin:/bin", frozen.Env["PATH"])
}

func TestSynthesizeVolumeNamesByScope(t *testing.T) {
	base := &manifest.RunConfig{
		Volumes: map[string]manifest.Volume{
			"/data":  {Scope: manifest.ScopeProject},
			"/cache": {Scope: manifest.ScopeOCIImage},
			"/tmp/x": {Scope: manifest.ScopeBinary},
			"/named": {Name: "custom_name", Scope: manifest.ScopeProject},
		},
	}
	ctx := Context{ProjectInternalID: "abc123", ImageName: "my/image", Tag: "1.0", BinaryName: "tool"}

	frozen, err := Merge(base, nil, nil, ctx, nil)
	require.NoError(t, err)

	byPath := map[string]string{}
	for _, v := range frozen.Volumes {
		byPath[v.ContainerPath] = v.VolumeName
	}

	assert.Contains(t, byPath["/data"], "prj_abc123_")
	assert.Contains(t, byPath["/cache"], "img_abc123_my.image:1.0_")
	assert.Contains(t, byPath["/tmp/x"], "bin_abc123_my.image:1.0_tool_")
	assert.Equal(t, "custom_name", byPath["/named"])
}

func TestVolumeNamesAreDeterministic(t *testing.T) {
	ctx := Context{ProjectInternalID: "p1", ImageName: "alpine", Tag: "3.18", BinaryName: "sh"}
	name1, err1 := synthesizeVolumeName(manifest.ScopeProject, "/data", ctx)
	name2, err2 := synthesizeVolumeName(manifest.ScopeProject, "/data", ctx)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, name1, name2)
}

func TestCombineFoldsImageAndTagLayers(t *testing.T) {
	image := &manifest.RunConfig{Env: map[string]string{"A": "image"}, ExtraPaths: []string{"a"}}
	tag := &manifest.RunConfig{Env: map[string]string{"B": "tag"}, ExtraPaths: []string{"b"}}

	combined := Combine(image, tag)
	require.NotNil(t, combined)
	assert.Equal(t, "image", combined.Env["A"])
	assert.Equal(t, "tag", combined.Env["B"])
	assert.ElementsMatch(t, []string{"a", "b"}, combined.ExtraPaths)
}

func TestCombineBothNilReturnsNil(t *testing.T) {
	assert.Nil(t, Combine(nil, nil))
}
