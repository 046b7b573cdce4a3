// Package cli implements the identity dispatcher (spec.md section 4.H)
// and the subcommand front-end (spec.md section 4.J): init, install,
// shell, run, and export-env, parsed with integrii/flaggy the way the
// teacher's main.go parses lazydocker's top-level flags.
package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/avatarlog"
	"github.com/avatar-cli/avatar/internal/docstore"
	"github.com/avatar-cli/avatar/internal/hostproc"
	"github.com/avatar-cli/avatar/internal/ident"
	"github.com/avatar-cli/avatar/internal/imageresolver"
	"github.com/avatar-cli/avatar/internal/invocation"
	"github.com/avatar-cli/avatar/internal/layout"
	"github.com/avatar-cli/avatar/internal/lockcompiler"
	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/avatar-cli/avatar/internal/project"
	"github.com/avatar-cli/avatar/internal/reconciler"
	"github.com/avatar-cli/avatar/internal/runtimecli"
	"github.com/avatar-cli/avatar/internal/workspace"
	"github.com/imdario/mergo"
	"github.com/integrii/flaggy"
	"github.com/riywo/loginshell"
	"github.com/sirupsen/logrus"
)

// Settings carries the process-wide defaults that flag values overlay
// on top of, merged with mergo the way the teacher's OSCommand merges a
// caller-supplied CommandObject over its defaults (pkg/commands/os.go).
type Settings struct {
	Debug bool
}

func defaultSettings() Settings {
	return Settings{Debug: os.Getenv("AVATAR_DEBUG") == "TRUE"}
}

// IsFrontEnd implements spec.md 4.H: the identity dispatcher. argv0's
// basename of "avatar" or "avatar-cli" selects the subcommand front-end;
// anything else is a shim invocation of that basename's binary_name.
func IsFrontEnd(argv0 string) bool {
	base := filepath.Base(argv0)
	return base == "avatar" || base == "avatar-cli"
}

// Run is main.go's single entry point after identity dispatch has
// selected front-end mode.
func Run(argv []string, version string) error {
	if len(argv) >= 2 && !strings.HasPrefix(argv[1], "-") {
		switch argv[1] {
		case "init":
			return runInit(argv, version)
		case "install":
			return runInstall(argv, version)
		case "shell":
			return runShell(argv, version)
		case "run":
			return runRun(argv, version)
		case "export-env":
			return runExportEnv(argv, version)
		}
	}

	flaggy.SetName("avatar")
	flaggy.SetDescription("Materializes containerized binaries as project-local shims")
	flaggy.DefaultParser.AdditionalHelpPrepend = "avatar init [-p PATH] | avatar install | avatar shell | avatar run <binary> [ARGS...] | avatar export-env"
	flaggy.SetVersion(version)
	flaggy.Parse()
	return avatarerr.New(avatarerr.CodeUsage, "expected one of: init, install, shell, run, export-env")
}

// ShimInvoke implements the shim half of 4.H/4.I: argv[0]'s basename
// names the binary; dispatch straight into the invocation builder,
// skipping only argv[0] itself.
func ShimInvoke(argv []string) error {
	binaryName := filepath.Base(argv[0])
	return runInvocation(binaryName, argv, 1, version())
}

func runInit(argv []string, _ string) error {
	path := "."
	parser := flaggy.NewParser("avatar init")
	parser.String(&path, "p", "path", "project directory to initialize")
	if err := parser.ParseArgs(argv[2:]); err != nil {
		return avatarerr.New(avatarerr.CodeUsage, "%s", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return avatarerr.New(avatarerr.CodeOSErr, "failed to resolve %s: %s", path, err)
	}

	if root, found, err := project.Locate(absPath); err != nil {
		return err
	} else if found {
		return avatarerr.New(avatarerr.CodeUsage, "a project already exists at %s", root)
	}

	configDir := layout.ConfigDir(absPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return avatarerr.New(avatarerr.CodeCantCreat, "failed to create %s: %s", configDir, err)
	}

	man := manifest.Manifest{
		AvatarVersion:     "0.1",
		ProjectInternalID: ident.New(),
	}
	if _, err := docstore.Save(layout.ManifestPath(absPath), man); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		appendGitignore(absPath)
	}

	fmt.Printf("initialized avatar project at %s\n", absPath)
	return nil
}

func appendGitignore(projectRoot string) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")
	entry := layout.ConfigDirName + "/" + layout.VolatileDirName + "/"

	existing, _ := os.ReadFile(gitignorePath)
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == entry {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, entry)
}

// installResult bundles what `install` needs to hand to `shell` and
// `export-env` without re-running the reconciler twice.
type installResult struct {
	projectRoot  string
	sessionToken string
	log          *logrus.Entry
}

func runInstall(argv []string, _ string) (err error) {
	result, err := doInstall(argv[2:], version())
	_ = result
	return err
}

func doInstall(args []string, ver string) (installResult, error) {
	var overrides Settings
	parser := flaggy.NewParser("avatar install")
	parser.Bool(&overrides.Debug, "d", "debug", "enable debug logging")
	_ = parser.ParseArgs(args)

	settings, err := mergeSettings(defaultSettings(), overrides)
	if err != nil {
		return installResult{}, err
	}

	if os.Getenv("SESSION_TOKEN") != "" {
		return installResult{}, avatarerr.New(avatarerr.CodeUsage,
			"refusing to install inside an existing session (SESSION_TOKEN=%s); exit that shell first", os.Getenv("SESSION_TOKEN"))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return installResult{}, avatarerr.New(avatarerr.CodeOSErr, "failed to resolve working directory: %s", err)
	}
	projectRoot, found, err := project.Locate(cwd)
	if err != nil {
		return installResult{}, err
	}
	if !found {
		return installResult{}, avatarerr.New(avatarerr.CodeUsage, "no avatar project found above %s", cwd)
	}

	log := avatarlog.New(layout.ConfigDir(projectRoot), settings.Debug, avatarlog.Fields{Version: ver})
	rt := runtimecli.New(log)
	resolver := imageresolver.New(rt, log)
	compiler := &lockcompiler.Compiler{
		Resolver: resolver,
		Log:      log,
		LookupImagePath: func(imageRef string) (string, error) {
			return rt.InspectImagePathEnv(imageRef)
		},
	}
	rec := &reconciler.Reconciler{Compiler: compiler, Log: log}

	paths := reconciler.Paths{
		ManifestPath: layout.ManifestPath(projectRoot),
		LockPath:     layout.LockPath(projectRoot),
		StatePath:    layout.StatePath(projectRoot),
	}
	recResult, err := rec.Reconcile(paths)
	if err != nil {
		return installResult{}, err
	}

	identity, err := hostproc.CurrentIdentity()
	if err != nil {
		return installResult{}, avatarerr.New(avatarerr.CodeOSErr, "failed to resolve current user: %s", err)
	}

	inst := &workspace.Installer{Runtime: rt, Log: log, Identity: identity}
	avatarExecutable, err := os.Executable()
	if err != nil {
		return installResult{}, avatarerr.New(avatarerr.CodeOSErr, "failed to resolve avatar's own executable path: %s", err)
	}
	rebuild := recResult.Changed || resolver.PulledAny
	if err := inst.Install(projectRoot, recResult.State, rebuild, avatarExecutable); err != nil {
		return installResult{}, err
	}

	sessionToken := os.Getenv("SESSION_TOKEN")
	if sessionToken == "" {
		sessionToken = ident.New()
	}

	return installResult{projectRoot: projectRoot, sessionToken: sessionToken, log: log}, nil
}

func runShell(argv []string, ver string) error {
	result, err := doInstall(argv[2:], ver)
	if err != nil {
		return err
	}

	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		if inferred, err := loginshell.Shell(); err == nil {
			shellPath = inferred
		} else {
			shellPath = "/bin/sh"
		}
	}

	if _, _, err := invocation.VerifyHashChain(result.projectRoot); err != nil {
		return err
	}

	newPath := shellSearchPath(result.projectRoot)
	env := sessionEnv(result.projectRoot, result.sessionToken)
	env = append(env, "PATH="+newPath)

	full := os.Environ()
	for _, kv := range env {
		full = append(full, kv)
	}

	binary, lookErr := exec.LookPath(shellPath)
	if lookErr != nil {
		return avatarerr.New(avatarerr.CodeUnavailable, "shell %q not found: %s", shellPath, lookErr)
	}
	if err := syscall.Exec(binary, []string{shellPath}, full); err != nil {
		return avatarerr.New(avatarerr.CodeOSErr, "failed to exec shell %q: %s", shellPath, err)
	}
	return nil
}

// shellSearchPath prepends the shim directory and the shell's configured
// extra_paths (absolute kept, relative rebased onto the project root) to
// the host's existing PATH, per spec.md 4.J's `shell` subcommand.
func shellSearchPath(projectRoot string) string {
	lockLoaded, err := docstore.Load[struct {
		ShellConfig *struct {
			ExtraPaths []string `yaml:"extraPaths"`
		} `yaml:"shellConfig"`
	}](layout.LockPath(projectRoot))

	var entries []string
	entries = append(entries, layout.ShimDir(projectRoot))

	if err == nil && lockLoaded.Doc.ShellConfig != nil {
		for _, p := range lockLoaded.Doc.ShellConfig.ExtraPaths {
			if filepath.IsAbs(p) {
				entries = append(entries, p)
			} else {
				entries = append(entries, filepath.Join(projectRoot, p))
			}
		}
	}

	entries = append(entries, os.Getenv("PATH"))
	return strings.Join(entries, string(os.PathListSeparator))
}

func sessionEnv(projectRoot, sessionToken string) []string {
	state, _, err := invocation.VerifyHashChain(projectRoot)
	projectInternalID := ""
	if err == nil {
		projectInternalID = state.ProjectInternalID
	}
	return []string{
		"AVATAR_CLI_CONFIG_PATH=" + layout.ManifestPath(projectRoot),
		"AVATAR_CLI_CONFIG_LOCK_PATH=" + layout.LockPath(projectRoot),
		"AVATAR_CLI_PROJECT_PATH=" + projectRoot,
		"AVATAR_CLI_PROJECT_INTERNAL_ID=" + projectInternalID,
		"AVATAR_CLI_SESSION_TOKEN=" + sessionToken,
		"AVATAR_CLI_STATE_PATH=" + layout.StatePath(projectRoot),
		"SESSION_TOKEN=" + sessionToken,
	}
}

func runRun(argv []string, ver string) error {
	if len(argv) < 3 {
		return avatarerr.New(avatarerr.CodeUsage, "usage: avatar run <binary> [ARGS...]")
	}
	return runInvocation(argv[2], argv, 3, ver)
}

func runExportEnv(argv []string, ver string) error {
	result, err := doInstall(argv[2:], ver)
	if err != nil {
		return err
	}
	for _, kv := range sessionEnv(result.projectRoot, result.sessionToken) {
		name, value, _ := strings.Cut(kv, "=")
		fmt.Printf("export %s=%q\n", name, value)
	}
	return nil
}

func runInvocation(binaryName string, argv []string, skipArgs int, ver string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return avatarerr.New(avatarerr.CodeOSErr, "failed to resolve working directory: %s", err)
	}
	projectRoot, found, err := project.Locate(cwd)
	if err != nil {
		return err
	}
	if !found {
		return avatarerr.New(avatarerr.CodeUsage, "no avatar project found above %s", cwd)
	}

	state, _, err := invocation.VerifyHashChain(projectRoot)
	if err != nil {
		return err
	}

	log := avatarlog.New(layout.ConfigDir(projectRoot), defaultSettings().Debug, avatarlog.Fields{
		Version:           ver,
		ProjectInternalID: state.ProjectInternalID,
		SessionToken:      os.Getenv("SESSION_TOKEN"),
	})
	rt := runtimecli.New(log)

	identity, err := hostproc.CurrentIdentity()
	if err != nil {
		return avatarerr.New(avatarerr.CodeOSErr, "failed to resolve current user: %s", err)
	}

	sessionToken := os.Getenv("SESSION_TOKEN")
	if sessionToken == "" {
		if skipArgs == 1 {
			return avatarerr.New(avatarerr.CodeConfig, "SESSION_TOKEN is not set; run this from within `avatar shell`")
		}
		sessionToken = ident.New()
	}

	builder := &invocation.Builder{Runtime: rt, Identity: identity}
	launchArgv, err := builder.Build(invocation.Request{
		BinaryName:   binaryName,
		Cwd:          cwd,
		ProjectRoot:  projectRoot,
		SessionToken: sessionToken,
		SkipArgs:     skipArgs,
		Argv:         argv,
	}, state)
	if err != nil {
		return err
	}

	return rt.ExecLaunchArgs(launchArgv)
}

// mergeSettings overlays CLI-flag-derived overrides onto the
// environment-derived defaults, the way the teacher overlays a
// caller-supplied CommandObject onto its defaults in
// pkg/commands/podman.go's mergo.Merge call. Zero-value override fields
// (a flag the caller didn't pass) leave the corresponding default intact.
func mergeSettings(defaults, overrides Settings) (Settings, error) {
	merged := defaults
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return Settings{}, avatarerr.New(avatarerr.CodeSoftware, "failed to merge CLI settings: %s", err)
	}
	return merged, nil
}

func version() string {
	return "unversioned"
}
