// Package lockdoc defines the compiled, deterministic Lock document
// (spec.md section 3) produced by the lock compiler. The State document
// (package statedoc) shares its shape. Both are persisted as YAML under
// .avatar-cli/.
package lockdoc

// Lock is the digest-resolved, merged project configuration. It is
// regenerated whenever the Manifest's content hash no longer matches
// ProjectConfigHash.
type Lock struct {
	// ProjectConfigHash is SHA-256 of the canonical Manifest bytes.
	ProjectConfigHash string `yaml:"projectConfigHash"`
	ProjectInternalID string `yaml:"projectInternalId"`
	ShellConfig       *ShellConfig          `yaml:"shellConfig,omitempty"`
	Images            map[string]map[string]LockedImage `yaml:"images,omitempty"`
	Binaries          map[string]LockedBinary           `yaml:"binaries,omitempty"`
}

// ShellConfig mirrors manifest.ShellConfig; duplicated here so lockdoc has
// no import-cycle dependency on the manifest package and so the frozen
// document's shape is self-contained.
type ShellConfig struct {
	Env        map[string]string `yaml:"env,omitempty"`
	ExtraPaths []string          `yaml:"extraPaths,omitempty"`
}

// LockedImage is one resolved (tag -> digest) entry under an image name.
type LockedImage struct {
	Hash      string             `yaml:"hash"`
	RunConfig *FrozenRunConfig   `yaml:"runConfig,omitempty"`
}

// LockedBinary is the fully-resolved, per-binary effective configuration.
type LockedBinary struct {
	OCIImageName string           `yaml:"ociImageName"`
	OCIImageHash string           `yaml:"ociImageHash"`
	Path         string           `yaml:"path"`
	RunConfig    *FrozenRunConfig `yaml:"runConfig,omitempty"`
}

// FrozenRunConfig is RunConfig after base/overlay/shell merging, with
// volume names materialized rather than left to be regenerated.
type FrozenRunConfig struct {
	Env         map[string]string `yaml:"env,omitempty"`
	EnvFromHost []string          `yaml:"envFromHost,omitempty"`
	ExtraPaths  []string          `yaml:"extraPaths,omitempty"`
	Volumes     []VolumeLock      `yaml:"volumes,omitempty"`
	Bindings    map[string]string `yaml:"bindings,omitempty"`
	// PathSynthesized marks that Env["PATH"], if present, was produced by
	// the shell-overlay synthesis step (runconfig.synthesizeShellPath),
	// not declared by a user. Invariant 4 forbids the latter but requires
	// the former to flow through to the invocation builder.
	PathSynthesized bool `yaml:"pathSynthesized,omitempty"`
}

// VolumeLock is one materialized volume mount: a container path paired
// with the already-synthesized (or user-overridden) volume name.
type VolumeLock struct {
	ContainerPath string `yaml:"containerPath"`
	VolumeName    string `yaml:"volumeName"`
}
