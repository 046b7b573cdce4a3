package invocation

import (
	"testing"

	"github.com/avatar-cli/avatar/internal/hostproc"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/avatar-cli/avatar/internal/statedoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(rc *lockdoc.FrozenRunConfig) statedoc.State {
	return statedoc.State{
		ProjectInternalID: "abc1234567890123",
		Binaries: map[string]lockdoc.LockedBinary{
			"tool": {
				OCIImageName: "alpine",
				OCIImageHash: "deadbeef",
				Path:         "/usr/bin/tool",
				RunConfig:    rc,
			},
		},
	}
}

func TestBuildRejectsUserDeclaredPath(t *testing.T) {
	b := &Builder{Identity: hostproc.Identity{UID: 1000, GID: 1000, Username: "dev"}}
	req := Request{
		BinaryName:   "tool",
		Cwd:          "/home/dev/proj",
		ProjectRoot:  "/home/dev/proj",
		SessionToken: "session1234567890",
		SkipArgs:     1,
		Argv:         []string{"tool"},
	}
	state := testState(&lockdoc.FrozenRunConfig{Env: map[string]string{"PATH": "/usr/local/bin"}})

	_, err := b.Build(req, state)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Passing a custom PATH environment variable is forbidden")
}

func TestBuildPassesThroughSynthesizedShellPath(t *testing.T) {
	b := &Builder{Identity: hostproc.Identity{UID: 1000, GID: 1000, Username: "dev"}}
	req := Request{
		BinaryName:   "tool",
		Cwd:          "/home/dev/proj",
		ProjectRoot:  "/home/dev/proj",
		SessionToken: "session1234567890",
		SkipArgs:     1,
		Argv:         []string{"tool"},
	}
	state := testState(&lockdoc.FrozenRunConfig{
		Env:             map[string]string{"PATH": "/playground/tools/bin:/usr/bin"},
		PathSynthesized: true,
	})

	argv, err := b.Build(req, state)

	require.NoError(t, err)
	assert.Contains(t, argv, "PATH=/playground/tools/bin:/usr/bin")
}

func TestRewriteUserArgRebasesAbsolutePathInsideProject(t *testing.T) {
	got := rewriteUserArg("/home/dev/proj", "/home/dev/proj/src/main.go")
	assert.Equal(t, "/playground/src/main.go", got)
}

func TestRewriteUserArgLeavesRelativeArgsAlone(t *testing.T) {
	got := rewriteUserArg("/home/dev/proj", "--flag=value")
	assert.Equal(t, "--flag=value", got)
}

func TestRewriteUserArgLeavesOutsidePathsAlone(t *testing.T) {
	got := rewriteUserArg("/home/dev/proj", "/etc/hosts")
	assert.Equal(t, "/etc/hosts", got)
}

func TestGpgAgentSocketPath(t *testing.T) {
	assert.Equal(t, "/run/user/1000/gnupg/S.gpg-agent", gpgAgentSocketPath("/run/user/1000/gnupg/S.gpg-agent:1234:1"))
	assert.Equal(t, "/tmp/sock", gpgAgentSocketPath("/tmp/sock"))
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "1000", itoa(1000))
	assert.Equal(t, "-7", itoa(-7))
}

func TestSortedKeys(t *testing.T) {
	got := sortedKeys(map[string]string{"b": "1", "a": "2", "c": "3"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
