// Package invocation implements the invocation builder (spec.md section
// 4.I): given an invoked shim name and the State, it assembles the full
// container-launch argument vector and replaces the current process with
// the runtime.
package invocation

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/docstore"
	"github.com/avatar-cli/avatar/internal/hostproc"
	"github.com/avatar-cli/avatar/internal/ident"
	"github.com/avatar-cli/avatar/internal/layout"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/avatar-cli/avatar/internal/project"
	"github.com/avatar-cli/avatar/internal/runtimecli"
	"github.com/avatar-cli/avatar/internal/statedoc"
	"golang.org/x/term"
)

// Request carries everything the builder needs to assemble one
// container-launch argv (spec.md 4.I's inputs).
type Request struct {
	BinaryName   string
	Cwd          string
	ProjectRoot  string
	SessionToken string
	// SkipArgs is 1 in shim mode, 3 in `avatar run <name> ...` mode.
	SkipArgs int
	Argv      []string
}

// Builder assembles and launches container invocations.
type Builder struct {
	Runtime  *runtimecli.Runtime
	Identity hostproc.Identity
}

// VerifyHashChain re-checks Invariants 1-2 without regenerating anything;
// the shim path refuses to self-heal (spec.md section 7), reporting a
// broken chain as CodeDataErr instead.
func VerifyHashChain(projectRoot string) (statedoc.State, manifest.Manifest, error) {
	manLoaded, err := docstore.Load[manifest.Manifest](layout.ManifestPath(projectRoot))
	if err != nil {
		return statedoc.State{}, manifest.Manifest{}, err
	}

	lockLoaded, err := docstore.Load[lockdoc.Lock](layout.LockPath(projectRoot))
	if err != nil {
		return statedoc.State{}, manifest.Manifest{}, err
	}
	if lockLoaded.Doc.ProjectConfigHash != manLoaded.Hash {
		return statedoc.State{}, manifest.Manifest{}, avatarerr.New(avatarerr.CodeDataErr,
			"Avatarfile.lock does not match Avatarfile; exit this session and run `avatar install`")
	}

	stateLoaded, err := docstore.Load[statedoc.State](layout.StatePath(projectRoot))
	if err != nil {
		return statedoc.State{}, manifest.Manifest{}, err
	}
	if stateLoaded.Doc.ProjectConfigHash != lockLoaded.Hash {
		return statedoc.State{}, manifest.Manifest{}, avatarerr.New(avatarerr.CodeDataErr,
			"state.yml does not match Avatarfile.lock; exit this session and run `avatar install`")
	}

	return stateLoaded.Doc, manLoaded.Doc, nil
}

// Build assembles the container-launch argv for req, given the verified
// State. It does not execute anything.
func (b *Builder) Build(req Request, state statedoc.State) ([]string, error) {
	if !project.IsInside(req.ProjectRoot, req.Cwd) {
		return nil, avatarerr.New(avatarerr.CodeUsage, "current directory is outside the project")
	}

	binary, ok := state.Binaries[req.BinaryName]
	if !ok {
		return nil, avatarerr.New(avatarerr.CodeUsage, "%s is not properly configured as an avatar-cli binary", req.BinaryName)
	}

	var argv []string
	argv = append(argv, "run", "--rm", "--init")

	argv = append(argv, "-i")
	if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		argv = append(argv, "-t")
	}

	rc := binary.RunConfig

	if rc != nil {
		for _, k := range sortedKeys(rc.Env) {
			if k == "PATH" {
				if !rc.PathSynthesized {
					return nil, avatarerr.New(avatarerr.CodeDataErr, "Passing a custom PATH environment variable is forbidden")
				}
				argv = append(argv, "--env", "PATH="+rc.Env[k])
				continue
			}
			argv = append(argv, "--env", k+"="+rc.Env[k])
		}
		for _, name := range rc.EnvFromHost {
			if name == "PATH" {
				return nil, avatarerr.New(avatarerr.CodeDataErr, "Passing a custom PATH environment variable is forbidden")
			}
			if value, ok := os.LookupEnv(name); ok {
				argv = append(argv, "--env", name+"="+value)
			}
		}
	}

	processToken := ident.New()
	projectName := filepath.Base(req.ProjectRoot)
	containerName := projectName + "_" + req.BinaryName + "_" + state.ProjectInternalID + "_" + req.SessionToken + "_" + processToken

	argv = append(argv,
		"--name", containerName,
		"--label", layout.ProjectRoleLabel,
		"--label", layout.ProjectIDLabel(state.ProjectInternalID),
		"--env", "PROCESS_ID="+processToken,
		"--env", "PROJECT_INTERNAL_ID="+state.ProjectInternalID,
		"--env", "SESSION_TOKEN="+req.SessionToken,
		"--user", itoa(b.Identity.UID)+":"+itoa(b.Identity.GID),
	)

	relCwd, err := project.ToRelative(req.ProjectRoot, req.Cwd)
	if err != nil {
		return nil, avatarerr.New(avatarerr.CodeOSErr, "failed to resolve working directory: %s", err)
	}
	argv = append(argv,
		"--mount", "type=bind,source="+req.ProjectRoot+",target="+layout.ContainerProjectMount,
		"--workdir", filepath.ToSlash(filepath.Join(layout.ContainerProjectMount, relCwd)),
	)

	argv = append(argv,
		"--mount", "type=bind,source="+layout.HomeDir(req.ProjectRoot)+",target="+layout.ContainerHome,
		"--env", "HOME="+layout.ContainerHome,
	)

	if rc != nil {
		for _, vol := range rc.Volumes {
			argv = append(argv, "--volume", vol.VolumeName+":"+vol.ContainerPath)
		}
		for _, containerPath := range sortedKeys(rc.Bindings) {
			argv = append(argv, "--mount", "type=bind,source="+rc.Bindings[containerPath]+",target="+containerPath)
		}
	}

	argv = append(argv, b.userIntegrationArgs(req.ProjectRoot, binary)...)

	imageRef := binary.OCIImageName + "@sha256:" + binary.OCIImageHash
	argv = append(argv, imageRef, binary.Path)

	for _, a := range req.Argv[req.SkipArgs:] {
		argv = append(argv, rewriteUserArg(req.ProjectRoot, a))
	}

	return argv, nil
}

// userIntegrationArgs implements spec.md 4.I's "user-integration args".
func (b *Builder) userIntegrationArgs(projectRoot string, binary lockdoc.LockedBinary) []string {
	var args []string

	if term, ok := hostproc.TermValue(); ok {
		args = append(args, "--env", "TERM="+term)
	}

	args = append(args,
		"--env", "USER="+b.Identity.Username,
		"--env", "USERNAME="+b.Identity.Username,
	)

	if hostproc.IsDarwin() {
		const macSock = "/run/host-services/ssh-auth.sock"
		args = append(args,
			"--mount", "type=bind,source="+macSock+",target="+macSock,
			"--env", "SSH_AUTH_SOCK="+macSock,
		)
	} else {
		if sock, ok := hostproc.SSHAuthSock(); ok {
			dir := filepath.Dir(sock)
			args = append(args,
				"--mount", "type=bind,source="+dir+",target="+dir,
				"--env", "SSH_AUTH_SOCK="+sock,
			)
		}
		if info, ok := hostproc.GPGAgentInfo(); ok {
			dir := filepath.Dir(gpgAgentSocketPath(info))
			args = append(args,
				"--mount", "type=bind,source="+dir+",target="+dir,
				"--env", "GPG_AGENT_INFO="+info,
			)
		}
	}

	if sshDir, ok := hostproc.DotSSHDir(); ok {
		args = append(args, "--mount", "type=bind,source="+sshDir+",target="+layout.ContainerHome+"/.ssh")
	}
	if gnupgDir, ok := hostproc.DotGnuPGDir(); ok {
		args = append(args, "--mount", "type=bind,source="+gnupgDir+",target="+layout.ContainerHome+"/.gnupg")
	}

	imageRef := binary.OCIImageName + "@sha256:" + binary.OCIImageHash
	passwdPath := layout.ImagePasswdPath(projectRoot, imageRef)
	if exists, regular, _ := docstore.IsRegular(passwdPath); exists && regular {
		args = append(args, "--mount", "type=bind,source="+passwdPath+",target=/etc/passwd")
	}

	if name, email, ok := hostproc.GitIdentity(); ok {
		args = append(args,
			"--env", "GIT_AUTHOR_NAME="+name,
			"--env", "GIT_COMMITTER_NAME="+name,
			"--env", "GIT_AUTHOR_EMAIL="+email,
			"--env", "GIT_COMMITTER_EMAIL="+email,
		)
	}

	return args
}

// gpgAgentSocketPath extracts the socket path from a GPG_AGENT_INFO value
// shaped "<socket>:<pid>:<protocol-version>".
func gpgAgentSocketPath(info string) string {
	for i := 0; i < len(info); i++ {
		if info[i] == ':' {
			return info[:i]
		}
	}
	return info
}

// rewriteUserArg rewrites an absolute argument inside the project root to
// its /playground-relative form; anything else (relative args, absolute
// args outside the project) passes through unchanged (spec.md 4.I step 12).
func rewriteUserArg(projectRoot, arg string) string {
	if !filepath.IsAbs(arg) {
		return arg
	}
	if !project.IsInside(projectRoot, arg) {
		return arg
	}
	rel, err := project.ToRelative(projectRoot, arg)
	if err != nil {
		return arg
	}
	return filepath.ToSlash(filepath.Join(layout.ContainerProjectMount, rel))
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
