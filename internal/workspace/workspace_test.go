package workspace

import (
	"testing"

	"github.com/avatar-cli/avatar/internal/hostproc"
	"github.com/stretchr/testify/assert"
)

func TestInferShellPrefersBashOverOthers(t *testing.T) {
	files := []string{"./usr/bin/dash", "./usr/bin/bash", "./etc/passwd"}
	assert.Equal(t, "/bin/bash", inferShell(files))
}

func TestInferShellFallsBackToSh(t *testing.T) {
	files := []string{"./usr/bin/ls", "./etc/passwd"}
	assert.Equal(t, "/bin/sh", inferShell(files))
}

func TestHasEtcPasswd(t *testing.T) {
	assert.True(t, hasEtcPasswd([]string{"./etc/passwd"}))
	assert.True(t, hasEtcPasswd([]string{"/etc/passwd"}))
	assert.False(t, hasEtcPasswd([]string{"./etc/shadow"}))
}

func TestRewritePasswdReplacesMatchingUID(t *testing.T) {
	raw := "root:x:0:0:root:/root:/bin/ash\nnobody:x:1000:1000::/home/nobody:/bin/sh\n"
	id := hostproc.Identity{UID: 1000, GID: 1000, Username: "dev"}

	out := rewritePasswd(raw, id, "/bin/sh")

	assert.Contains(t, out, "dev:x:1000:1000::/home/avatar-cli:/bin/sh")
	assert.Contains(t, out, "root:x:0:0:root:/root:/bin/ash")
}

func TestRewritePasswdAppendsWhenUIDMissing(t *testing.T) {
	raw := "root:x:0:0:root:/root:/bin/ash\n"
	id := hostproc.Identity{UID: 1000, GID: 1000, Username: "dev"}

	out := rewritePasswd(raw, id, "/bin/zsh")

	assert.Contains(t, out, "dev:x:1000:1000::/home/avatar-cli:/bin/zsh")
}

func TestTrimTarPrefix(t *testing.T) {
	assert.Equal(t, "etc/passwd", trimTarPrefix("./etc/passwd"))
	assert.Equal(t, "etc/passwd", trimTarPrefix("/etc/passwd"))
	assert.Equal(t, "etc/passwd", trimTarPrefix("etc/passwd"))
}
