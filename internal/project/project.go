// Package project implements the project locator (spec.md section 4.A):
// walking ancestors from the current working directory to find the
// project root, and translating host paths relative to it.
package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/avatar-cli/avatar/internal/layout"
)

// Locate ascends from startDir until it finds a directory containing
// <dir>/.avatar-cli/Avatarfile as a regular file. It returns ("", false,
// nil) if no such ancestor exists.
func Locate(startDir string) (root string, found bool, err error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, err
	}

	for {
		manifestPath := layout.ManifestPath(dir)
		info, statErr := os.Stat(manifestPath)
		if statErr == nil && info.Mode().IsRegular() {
			return dir, true, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// IsInside reports whether candidate is projectRoot itself or a
// descendant of it.
func IsInside(projectRoot, candidate string) bool {
	rel, err := filepath.Rel(projectRoot, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..")
}

// ToRelative returns absPath expressed relative to projectRoot, using
// forward slashes so it can be joined onto the container's /playground
// mount point regardless of host OS.
func ToRelative(projectRoot, absPath string) (string, error) {
	rel, err := filepath.Rel(projectRoot, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
