// Package manifest defines the declarative, user-authored project
// configuration (spec.md section 3) and its YAML shape. Manifest is
// created by `avatar init` and otherwise only ever read, never mutated by
// the core.
package manifest

// Manifest is the root of the user-authored project configuration,
// stored at <project-root>/.avatar-cli/Avatarfile.
type Manifest struct {
	AvatarVersion     string                `yaml:"avatarVersion"`
	ProjectInternalID string                `yaml:"projectInternalId"`
	ShellConfig       *ShellConfig          `yaml:"shellConfig,omitempty"`
	// Images has no omitempty: a nil map must still serialize as
	// "images: null" (spec.md's `avatar init` golden output), not as an
	// absent key.
	Images map[string]ImageEntry `yaml:"images"`
}

// ImageEntry is the manifest's per-image-name declaration: a set of tags,
// each carrying its own binaries, plus an image-level RunConfig applied
// to every tag beneath it.
type ImageEntry struct {
	Tags      map[string]TagConfig `yaml:"tags,omitempty"`
	RunConfig *RunConfig           `yaml:"runConfig,omitempty"`
}

// TagConfig declares the binaries avatar should materialize for one
// image:tag pairing, plus a tag-level RunConfig overlay.
type TagConfig struct {
	Binaries  map[string]BinaryConfig `yaml:"binaries,omitempty"`
	RunConfig *RunConfig              `yaml:"runConfig,omitempty"`
}

// BinaryConfig declares one shim-able executable inside a container image.
type BinaryConfig struct {
	// Path is the absolute path to the executable inside the container.
	// When empty, it defaults to "/<binary_name>".
	Path      string     `yaml:"path,omitempty"`
	RunConfig *RunConfig `yaml:"runConfig,omitempty"`
}

// RunConfig is the declarative, mergeable run-time configuration shared by
// image-, tag-, and binary-level overlays (spec.md section 4.C).
type RunConfig struct {
	Env          map[string]string   `yaml:"env,omitempty"`
	EnvFromHost  []string            `yaml:"envFromHost,omitempty"`
	ExtraPaths   []string            `yaml:"extraPaths,omitempty"`
	Volumes      map[string]Volume   `yaml:"volumes,omitempty"`
	Bindings     map[string]string   `yaml:"bindings,omitempty"`
}

// VolumeScope names the uniqueness scope a named volume is synthesized
// under (spec.md Invariant 5).
type VolumeScope string

const (
	ScopeProject VolumeScope = "Project"
	ScopeOCIImage VolumeScope = "OCIImage"
	ScopeBinary   VolumeScope = "Binary"
)

// Volume declares a named-volume mount point, keyed by its container path
// in RunConfig.Volumes.
type Volume struct {
	Name  string      `yaml:"name,omitempty"`
	Scope VolumeScope `yaml:"scope"`
}

// ShellConfig is applied only to the `avatar shell` session and to PATH
// synthesis for binaries; it never allows a PATH key in Env.
type ShellConfig struct {
	Env        map[string]string `yaml:"env,omitempty"`
	ExtraPaths []string          `yaml:"extraPaths,omitempty"`
}
