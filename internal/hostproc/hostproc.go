// Package hostproc gathers the host-integration facts the invocation
// builder (spec.md section 4.I) needs to forward into a container: the
// current user's identity, its home directory, SSH/GPG agent sockets, and
// git's configured author identity. These are all "integration surfaces,
// not core logic" per spec.md section 1, but the core still needs a place
// to read them from.
package hostproc

import (
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
)

// Identity is the current OS user's uid/gid/username, resolved the way
// the teacher's OSCommand resolves platform facts once at startup.
type Identity struct {
	UID      int
	GID      int
	Username string
}

// CurrentIdentity resolves the invoking process's user identity.
func CurrentIdentity() (Identity, error) {
	u, err := user.Current()
	if err != nil {
		return Identity{}, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: uid, GID: gid, Username: u.Username}, nil
}

// HomeDir resolves the current user's home directory.
func HomeDir() (string, error) {
	return homedir.Dir()
}

// DotSSHDir and DotGnuPGDir return the host paths avatar bind-mounts into
// a container's home directory when present (spec.md 4.I).
func DotSSHDir() (string, bool) {
	return existingDir(".ssh")
}

func DotGnuPGDir() (string, bool) {
	return existingDir(".gnupg")
}

func existingDir(relToHome string) (string, bool) {
	home, err := homedir.Dir()
	if err != nil {
		return "", false
	}
	candidate := filepath.Join(home, relToHome)
	info, statErr := os.Stat(candidate)
	if statErr != nil || !info.IsDir() {
		return "", false
	}
	return candidate, true
}

// SSHAuthSock returns the host's SSH_AUTH_SOCK, if set.
func SSHAuthSock() (string, bool) {
	return lookupEnv("SSH_AUTH_SOCK")
}

// GPGAgentInfo returns the host's GPG_AGENT_INFO, if set (Linux only;
// recent gpg-agent versions on macOS/Windows don't populate it).
func GPGAgentInfo() (string, bool) {
	return lookupEnv("GPG_AGENT_INFO")
}

// TermValue returns the host's TERM, if set.
func TermValue() (string, bool) {
	return lookupEnv("TERM")
}

func lookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// IsDarwin reports whether avatar is running on macOS, which changes the
// SSH-agent forwarding strategy (spec.md 4.I).
func IsDarwin() bool {
	return runtime.GOOS == "darwin"
}

// GitIdentity shells out to `git config user.name` / `user.email`,
// forwarding both only when both succeed (spec.md 4.I).
func GitIdentity() (name, email string, ok bool) {
	name, nameErr := gitConfig("user.name")
	email, emailErr := gitConfig("user.email")
	if nameErr != nil || emailErr != nil || name == "" || email == "" {
		return "", "", false
	}
	return name, email, true
}

func gitConfig(key string) (string, error) {
	out, err := exec.Command("git", "config", key).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
