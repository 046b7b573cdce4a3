// Package statedoc defines the State document: the installed-workspace
// view of the Lock (spec.md section 3). It shares the Lock's exact shape;
// only the meaning of ProjectConfigHash differs (it points at the Lock's
// bytes, not the Manifest's).
package statedoc

import "github.com/avatar-cli/avatar/internal/lockdoc"

// State tracks whether the volatile workspace matches the current Lock.
type State struct {
	// ProjectConfigHash is SHA-256 of the canonical Lock bytes (not the
	// Manifest's), per spec.md Invariant 2.
	ProjectConfigHash string                             `yaml:"projectConfigHash"`
	ProjectInternalID string                             `yaml:"projectInternalId"`
	ShellConfig       *lockdoc.ShellConfig               `yaml:"shellConfig,omitempty"`
	Images            map[string]map[string]lockdoc.LockedImage `yaml:"images,omitempty"`
	Binaries          map[string]lockdoc.LockedBinary            `yaml:"binaries,omitempty"`
}

// FromLock stamps a State from a Lock and the Lock's own content hash.
func FromLock(lock lockdoc.Lock, lockHash string) State {
	return State{
		ProjectConfigHash: lockHash,
		ProjectInternalID: lock.ProjectInternalID,
		ShellConfig:       lock.ShellConfig,
		Images:            lock.Images,
		Binaries:          lock.Binaries,
	}
}

// ToLock discards the State-specific hash semantics and returns the
// underlying Lock-shaped data, for callers that only need the resolved
// images/binaries.
func (s State) ToLock() lockdoc.Lock {
	return lockdoc.Lock{
		ProjectConfigHash: s.ProjectConfigHash,
		ProjectInternalID: s.ProjectInternalID,
		ShellConfig:       s.ShellConfig,
		Images:            s.Images,
		Binaries:          s.Binaries,
	}
}
