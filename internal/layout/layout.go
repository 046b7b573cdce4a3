// Package layout centralizes the on-disk layout constants from spec.md
// section 6, so every component agrees on where Avatarfile, its lock,
// and the volatile workspace live.
package layout

import "path/filepath"

const (
	// ConfigDirName is the project-local configuration directory.
	ConfigDirName = ".avatar-cli"
	// VolatileDirName holds the regenerable workspace under ConfigDirName.
	VolatileDirName = "volatile"
	// ManifestName is the user-authored Manifest's filename.
	ManifestName = "Avatarfile"
	// LockName is the compiled Lock's filename.
	LockName = "Avatarfile.lock"
	// StateName is the installed-workspace State's filename.
	StateName = "state.yml"
	// ShimDirName holds one symlink per declared binary.
	ShimDirName = "bin"
	// HomeDirName is the empty bind-mount target used as the container's HOME.
	HomeDirName = "home"
	// ImagesDirName holds one <image>@sha256:<hash>/passwd per resolved image.
	ImagesDirName = "images"

	// ContainerHome is the fixed HOME inside every launched container.
	ContainerHome = "/home/avatar-cli"
	// ContainerProjectMount is where the project directory is bind-mounted.
	ContainerProjectMount = "/playground"

	// ProjectRoleLabel marks every avatar-managed container.
	ProjectRoleLabel = "managed_tool.container_role.avatar-cli"
)

// ConfigDir returns <projectRoot>/.avatar-cli.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ConfigDirName)
}

// ManifestPath returns <projectRoot>/.avatar-cli/Avatarfile.
func ManifestPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), ManifestName)
}

// LockPath returns <projectRoot>/.avatar-cli/Avatarfile.lock.
func LockPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), LockName)
}

// VolatileDir returns <projectRoot>/.avatar-cli/volatile.
func VolatileDir(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), VolatileDirName)
}

// StatePath returns <projectRoot>/.avatar-cli/volatile/state.yml.
func StatePath(projectRoot string) string {
	return filepath.Join(VolatileDir(projectRoot), StateName)
}

// ShimDir returns <projectRoot>/.avatar-cli/volatile/bin.
func ShimDir(projectRoot string) string {
	return filepath.Join(VolatileDir(projectRoot), ShimDirName)
}

// HomeDir returns <projectRoot>/.avatar-cli/volatile/home.
func HomeDir(projectRoot string) string {
	return filepath.Join(VolatileDir(projectRoot), HomeDirName)
}

// ImagesDir returns <projectRoot>/.avatar-cli/volatile/images.
func ImagesDir(projectRoot string) string {
	return filepath.Join(VolatileDir(projectRoot), ImagesDirName)
}

// ImagePasswdPath returns the per-image passwd file path for imageRef
// (e.g. "alpine@sha256:abc...").
func ImagePasswdPath(projectRoot, imageRef string) string {
	return filepath.Join(ImagesDir(projectRoot), imageRef, "passwd")
}

// ProjectIDLabel builds the per-project label used to scope helper
// containers and named volumes (spec.md 4.G, 4.I).
func ProjectIDLabel(projectInternalID string) string {
	return projectInternalID + ".byid.projects.avatar-cli"
}
