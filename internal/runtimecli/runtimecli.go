// Package runtimecli is the sole integration point with the external
// container runtime process (spec.md section 1: "the core treats it as an
// external process with a fixed CLI surface"). It never links a runtime's
// Go SDK; every call here is a blocking exec.Command the way the teacher
// repo's OSCommand shells out to docker/podman in pkg/commands/os.go.
package runtimecli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/mgutz/str"
	"github.com/sirupsen/logrus"
)

// Runtime wraps the container runtime's command-line surface: run, pull,
// inspect, create, export, volume create|inspect, container prune.
type Runtime struct {
	Log *logrus.Entry

	// baseArgv is the runtime's invocation prefix, e.g. []string{"docker"}
	// or []string{"podman", "--remote"}. Resolved once from
	// AVATAR_CONTAINER_RUNTIME (default "docker").
	baseArgv []string
}

// New resolves the runtime command from AVATAR_CONTAINER_RUNTIME (falling
// back to "docker"), the way the teacher splits a configurable command
// template with mgutz/str before building an exec.Cmd.
func New(log *logrus.Entry) *Runtime {
	cmdStr := os.Getenv("AVATAR_CONTAINER_RUNTIME")
	if strings.TrimSpace(cmdStr) == "" {
		cmdStr = "docker"
	}
	return &Runtime{Log: log, baseArgv: str.ToArgv(cmdStr)}
}

func (r *Runtime) command(args ...string) *exec.Cmd {
	full := append(append([]string{}, r.baseArgv[1:]...), args...)
	return exec.Command(r.baseArgv[0], full...)
}

func (r *Runtime) commandContext(ctx context.Context, args ...string) *exec.Cmd {
	full := append(append([]string{}, r.baseArgv[1:]...), args...)
	return exec.CommandContext(ctx, r.baseArgv[0], full...)
}

func sanitizeOutput(output []byte, err error) (string, error) {
	out := string(output)
	if err != nil {
		var exitErr *exec.ExitError
		if ee, ok := err.(*exec.ExitError); ok {
			exitErr = ee
			return out, fmt.Errorf("%s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// InspectRepoDigest runs `<runtime> inspect --format={{range
// .RepoDigests}}{{println .}}{{end}} <imageName>:<tag>` and extracts the
// SHA-256 digest whose repository name matches imageName (spec.md 4.D).
func (r *Runtime) InspectRepoDigest(imageName, tag string) (digest string, err error) {
	imageRef := imageName + ":" + tag
	cmd := r.command("inspect", "--format={{range .RepoDigests}}{{println .}}{{end}}", imageRef)
	before := time.Now()
	output, runErr := cmd.Output()
	r.Log.Debugf("inspect %s: %s", imageRef, time.Since(before))
	if runErr != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "image %s not present locally", imageRef)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, digestPart, ok := splitRepoDigest(line)
		if !ok {
			continue
		}
		if name == imageName {
			return digestPart, nil
		}
	}
	return "", avatarerr.New(avatarerr.CodeProtocol, "could not find a matching RepoDigest for %s", imageRef)
}

func splitRepoDigest(repoDigest string) (name, digest string, ok bool) {
	parts := strings.SplitN(repoDigest, "@sha256:", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Pull runs `<runtime> pull <imageName>:<tag>`.
func (r *Runtime) Pull(imageName, tag string) error {
	imageRef := imageName + ":" + tag
	cmd := r.command("pull", imageRef)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return avatarerr.New(avatarerr.CodeUnavailable, "failed to pull %s: %s", imageRef, err)
	}
	return nil
}

// InspectImagePathEnv queries an image's own PATH environment variable via
// `<runtime> inspect --format={{range .ContainerConfig.Env}}{{println
// .}}{{end}}`, returning "" if the image declares none (docker.rs in
// original_source confirms a missing PATH entry is not an error).
func (r *Runtime) InspectImagePathEnv(imageRef string) (string, error) {
	cmd := r.command("inspect", "--format={{range .ContainerConfig.Env}}{{println .}}{{end}}", imageRef)
	output, err := cmd.Output()
	if err != nil {
		return "", avatarerr.New(avatarerr.CodeOSErr, "unable to call runtime inspect for %s", imageRef)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if name == "PATH" {
			return value, nil
		}
	}
	return "", nil
}

// CreateHelper runs `<runtime> create --label ... <imageRef>` and returns
// the created container's ID, for the passwd-extraction pipeline (4.G).
func (r *Runtime) CreateHelper(imageRef string, labels ...string) (containerID string, err error) {
	args := []string{"create"}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	args = append(args, imageRef)

	output, runErr := r.command(args...).Output()
	if runErr != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "failed to create helper container for %s", imageRef)
	}
	return strings.TrimSpace(string(output)), nil
}

// ExportListFiles pipes `<runtime> export <containerID> | tar t` and
// returns the list of archive member names, using true process-to-process
// piping (spec.md design note: "Subprocess piping ... needs true stream
// piping between child processes to avoid buffering a full container
// filesystem in memory").
func (r *Runtime) ExportListFiles(containerID string) ([]string, error) {
	out, err := r.pipeExport(containerID, "t")
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(out, "\n"), "\n"), nil
}

// ExportExtractFile pipes `<runtime> export <containerID> | tar --extract
// -O <name>` and returns the extracted file's contents.
func (r *Runtime) ExportExtractFile(containerID, name string) (string, error) {
	return r.pipeExport(containerID, "--extract", "-O", name)
}

func (r *Runtime) pipeExport(containerID string, tarArgs ...string) (string, error) {
	exportCmd := r.command("export", containerID)
	tarCmd := exec.Command("tar", tarArgs...)

	pipe, err := exportCmd.StdoutPipe()
	if err != nil {
		return "", avatarerr.New(avatarerr.CodeOSErr, "failed to pipe runtime export: %s", err)
	}
	tarCmd.Stdin = pipe

	var stdout bytes.Buffer
	tarCmd.Stdout = &stdout

	if err := tarCmd.Start(); err != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "tar is required to extract image passwd files: %s", err)
	}
	if err := exportCmd.Start(); err != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "failed to start runtime export for %s: %s", containerID, err)
	}
	exportErr := exportCmd.Wait()
	tarErr := tarCmd.Wait()
	if exportErr != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "runtime export failed for %s: %s", containerID, exportErr)
	}
	if tarErr != nil {
		return "", avatarerr.New(avatarerr.CodeUnavailable, "tar failed while reading export stream: %s", tarErr)
	}
	return stdout.String(), nil
}

// ContainerPrune runs `<runtime> container prune --force --filter
// label=...` (repeated) to reap helper containers after passwd extraction.
func (r *Runtime) ContainerPrune(labelFilters ...string) error {
	args := []string{"container", "prune", "--force"}
	for _, f := range labelFilters {
		args = append(args, "--filter", "label="+f)
	}
	if _, err := sanitizeOutput(r.command(args...).Output()); err != nil {
		return avatarerr.New(avatarerr.CodeUnavailable, "failed to prune helper containers: %s", err)
	}
	return nil
}

// VolumeInspect runs `<runtime> volume inspect <name>` and reports whether
// the volume already exists.
func (r *Runtime) VolumeInspect(name string) (exists bool, err error) {
	cmd := r.command("volume", "inspect", name)
	if err := cmd.Run(); err != nil {
		return false, nil
	}
	return true, nil
}

// VolumeCreate runs `<runtime> volume create <name> --label ...`.
func (r *Runtime) VolumeCreate(name string, labels ...string) error {
	args := []string{"volume", "create", name}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	if _, err := sanitizeOutput(r.command(args...).Output()); err != nil {
		return avatarerr.New(avatarerr.CodeUnavailable, "failed to create volume %s: %s", name, err)
	}
	return nil
}

// VolumeChown runs a one-shot helper container to make a freshly created
// named volume writable by the host uid:gid (spec.md 4.G).
func (r *Runtime) VolumeChown(volumeName, containerPath string, uid, gid int) error {
	args := []string{
		"run", "--rm",
		"--volume", volumeName + ":" + containerPath,
		"alpine:3.12", "sh", "-c",
		fmt.Sprintf("chown -R %d:%d %s", uid, gid, containerPath),
	}
	if _, err := sanitizeOutput(r.command(args...).Output()); err != nil {
		return avatarerr.New(avatarerr.CodeUnavailable, "failed to chown volume %s: %s", volumeName, err)
	}
	return nil
}

// ExecLaunchArgs replaces the current process with the runtime invocation
// built from argv (spec.md 4.I: "replace the current process ... no
// waiting, no shell indirection"). It never returns on success.
func (r *Runtime) ExecLaunchArgs(argv []string) error {
	binary, err := exec.LookPath(r.baseArgv[0])
	if err != nil {
		return avatarerr.New(avatarerr.CodeUnavailable, "container runtime %q not found on PATH", r.baseArgv[0])
	}

	full := append(append([]string{}, r.baseArgv...), argv...)
	if err := syscall.Exec(binary, full, os.Environ()); err != nil {
		return avatarerr.New(avatarerr.CodeOSErr, "failed to exec container runtime: %s", err)
	}
	return nil
}
