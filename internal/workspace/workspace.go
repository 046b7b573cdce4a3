// Package workspace implements the workspace installer (spec.md section
// 4.G): idempotently (re)creating the volatile shim directory, home
// directory, per-image passwd files, and named volumes, gated by the
// `changed` flag from the state reconciler and a `pulledAnyImage` flag
// from the image-availability pass.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/hostproc"
	"github.com/avatar-cli/avatar/internal/layout"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/avatar-cli/avatar/internal/runtimecli"
	"github.com/avatar-cli/avatar/internal/statedoc"
	"github.com/sirupsen/logrus"
)

// shellCandidates is the priority order spec.md 4.G names for inferring a
// container's default shell when no etc/passwd is shipped.
var shellCandidates = []string{"bash", "zsh", "dash", "ksh", "csh"}

// Installer drives the workspace installer.
type Installer struct {
	Runtime  *runtimecli.Runtime
	Log      *logrus.Entry
	Identity hostproc.Identity
}

// Install (re)creates the bin/, home/, and images/ subdirectories under
// projectRoot's volatile directory when rebuild is true (changed ||
// pulledAnyImage), then reconciles every named volume unconditionally.
func (inst *Installer) Install(projectRoot string, state statedoc.State, rebuild bool, avatarExecutable string) error {
	if err := inst.installBin(projectRoot, state, rebuild, avatarExecutable); err != nil {
		return err
	}
	if err := inst.installHome(projectRoot, rebuild); err != nil {
		return err
	}
	if err := inst.installImages(projectRoot, state, rebuild); err != nil {
		return err
	}
	return inst.installVolumes(state)
}

// resetDir enforces the exists/non-dir/skip/rebuild rule common to all
// three volatile subdirectories (spec.md 4.G).
func resetDir(path string, rebuild bool) (shouldPopulate bool, err error) {
	info, statErr := os.Lstat(path)
	switch {
	case statErr == nil:
		if !info.IsDir() {
			return false, avatarerr.New(avatarerr.CodeUsage, "%s exists but is not a directory", path)
		}
		if !rebuild {
			return false, nil
		}
		if err := os.RemoveAll(path); err != nil {
			return false, avatarerr.New(avatarerr.CodeCantCreat, "failed to remove %s: %s", path, err)
		}
	case os.IsNotExist(statErr):
		// falls through to mkdir below
	default:
		return false, avatarerr.New(avatarerr.CodeIOErr, "failed to stat %s: %s", path, statErr)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, avatarerr.New(avatarerr.CodeCantCreat, "failed to create %s: %s", path, err)
	}
	return true, nil
}

func (inst *Installer) installBin(projectRoot string, state statedoc.State, rebuild bool, avatarExecutable string) error {
	dir := layout.ShimDir(projectRoot)
	populate, err := resetDir(dir, rebuild)
	if err != nil || !populate {
		return err
	}

	names := make([]string, 0, len(state.Binaries))
	for name := range state.Binaries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		link := filepath.Join(dir, name)
		if err := os.Symlink(avatarExecutable, link); err != nil {
			return avatarerr.New(avatarerr.CodeCantCreat, "failed to create shim %s: %s", link, err)
		}
	}
	return nil
}

func (inst *Installer) installHome(projectRoot string, rebuild bool) error {
	dir := layout.HomeDir(projectRoot)
	_, err := resetDir(dir, rebuild)
	return err
}

func (inst *Installer) installImages(projectRoot string, state statedoc.State, rebuild bool) error {
	dir := layout.ImagesDir(projectRoot)
	populate, err := resetDir(dir, rebuild)
	if err != nil || !populate {
		return err
	}

	imageNames := make([]string, 0, len(state.Images))
	for name := range state.Images {
		imageNames = append(imageNames, name)
	}
	sort.Strings(imageNames)

	roleLabel := layout.ProjectRoleLabel
	pidLabel := layout.ProjectIDLabel(state.ProjectInternalID)

	for _, imageName := range imageNames {
		tags := state.Images[imageName]
		tagNames := make([]string, 0, len(tags))
		for tag := range tags {
			tagNames = append(tagNames, tag)
		}
		sort.Strings(tagNames)

		for _, tag := range tagNames {
			hash := tags[tag].Hash
			imageRef := imageName + "@sha256:" + hash
			if err := inst.buildPasswdFile(projectRoot, imageRef, roleLabel, pidLabel); err != nil {
				return err
			}
		}
	}

	return inst.Runtime.ContainerPrune(roleLabel, pidLabel)
}

func (inst *Installer) buildPasswdFile(projectRoot, imageRef, roleLabel, pidLabel string) error {
	containerID, err := inst.Runtime.CreateHelper(imageRef, roleLabel, pidLabel)
	if err != nil {
		return err
	}

	files, err := inst.Runtime.ExportListFiles(containerID)
	if err != nil {
		return err
	}

	shell := inferShell(files)
	var content string

	if !hasEtcPasswd(files) {
		content = fmt.Sprintf("%s:x:%d:%d::%s:%s\n", inst.Identity.Username, inst.Identity.UID, inst.Identity.GID, layout.ContainerHome, shell)
	} else {
		raw, err := inst.Runtime.ExportExtractFile(containerID, "etc/passwd")
		if err != nil {
			return err
		}
		content = rewritePasswd(raw, inst.Identity, shell)
	}

	passwdPath := layout.ImagePasswdPath(projectRoot, imageRef)
	if err := os.MkdirAll(filepath.Dir(passwdPath), 0o755); err != nil {
		return avatarerr.New(avatarerr.CodeCantCreat, "failed to create %s: %s", filepath.Dir(passwdPath), err)
	}
	if err := os.WriteFile(passwdPath, []byte(content), 0o644); err != nil {
		return avatarerr.New(avatarerr.CodeIOErr, "failed to write %s: %s", passwdPath, err)
	}
	return nil
}

func hasEtcPasswd(files []string) bool {
	for _, f := range files {
		if trimTarPrefix(f) == "etc/passwd" {
			return true
		}
	}
	return false
}

func inferShell(files []string) string {
	for _, candidate := range shellCandidates {
		suffix := "bin/" + candidate
		for _, f := range files {
			if strings.HasSuffix(trimTarPrefix(f), suffix) {
				return "/bin/" + candidate
			}
		}
	}
	return "/bin/sh"
}

func trimTarPrefix(name string) string {
	return strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")
}

// rewritePasswd rewrites the /etc/passwd line whose uid matches id.UID,
// replacing its username and home directory while preserving its shell
// field if present, or appends a fresh line if no match exists (spec.md
// 4.G step 4).
func rewritePasswd(raw string, id hostproc.Identity, fallbackShell string) string {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	uidStr := strconv.Itoa(id.UID)
	matched := false

	for i, line := range lines {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 3 || fields[2] != uidStr {
			continue
		}

		fields[0] = id.Username
		if len(fields) >= 6 {
			fields[5] = layout.ContainerHome
		}
		if len(fields) < 7 || fields[6] == "" {
			if len(fields) >= 7 {
				fields[6] = fallbackShell
			} else {
				fields = append(fields, fallbackShell)
			}
		}
		lines[i] = strings.Join(fields, ":")
		matched = true
	}

	if !matched {
		lines = append(lines, fmt.Sprintf("%s:x:%d:%d::%s:%s", id.Username, id.UID, id.GID, layout.ContainerHome, fallbackShell))
	}

	return strings.Join(lines, "\n") + "\n"
}

func (inst *Installer) installVolumes(state statedoc.State) error {
	seen := map[string]bool{}
	names := make([]string, 0, len(state.Binaries))
	for name := range state.Binaries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		binary := state.Binaries[name]
		if binary.RunConfig == nil {
			continue
		}
		for _, vol := range binary.RunConfig.Volumes {
			if seen[vol.VolumeName] {
				continue
			}
			seen[vol.VolumeName] = true
			if err := inst.reconcileVolume(vol, state.ProjectInternalID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (inst *Installer) reconcileVolume(vol lockdoc.VolumeLock, projectInternalID string) error {
	exists, err := inst.Runtime.VolumeInspect(vol.VolumeName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := inst.Runtime.VolumeCreate(vol.VolumeName, "avatar_cli", layout.ProjectIDLabel(projectInternalID)); err != nil {
		return err
	}

	return inst.Runtime.VolumeChown(vol.VolumeName, vol.ContainerPath, inst.Identity.UID, inst.Identity.GID)
}
