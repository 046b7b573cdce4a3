// Package runconfig implements the three-layer run-configuration merge
// (spec.md section 4.C): image-level and binary-level RunConfig combined
// with the project-level ShellConfig (whose env sits beneath the
// per-binary env), producing a frozen, volume-named effective
// configuration per binary. The merge itself is a pure function
// of its inputs, following design note 1 in spec.md section 9
// ("merge_option_map over Option<Mapping>").
package runconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/samber/lo"
)

// Context carries the compilation context the volume-name synthesizer
// needs (spec.md Invariant 5): which project, image:tag, and binary this
// merge is frozen for.
type Context struct {
	ProjectInternalID string
	ImageName         string
	Tag               string
	BinaryName        string
}

// imageRefDotted is "image_name:tag" with '/' replaced by '.', the shape
// spec.md Invariant 5 requires for OCIImage- and Binary-scoped volume
// names.
func (c Context) imageRefDotted() string {
	ref := c.ImageName + ":" + c.Tag
	return strings.ReplaceAll(ref, "/", ".")
}

// ImagePathLookup queries the runtime for an image's own PATH env var
// (spec.md section 4.C's shell-overlay PATH synthesis step). It returns
// ("", nil) when the image declares no PATH.
type ImagePathLookup func(imageRef string) (string, error)

// Combine folds two RunConfig layers (e.g. image-level base, tag-level
// overlay) into one intermediate, unfrozen RunConfig, for manifests that
// declare RunConfig at more than the two layers Merge takes directly. It
// returns nil when both inputs are absent.
func Combine(base, overlay *manifest.RunConfig) *manifest.RunConfig {
	if base == nil && overlay == nil {
		return nil
	}
	return &manifest.RunConfig{
		Env:         mergeStringMap(optEnv(base), optEnv(overlay)),
		EnvFromHost: unionStrings(optEnvFromHost(base), optEnvFromHost(overlay)),
		ExtraPaths:  unionStrings(optExtraPaths(base), optExtraPaths(overlay)),
		Volumes:     mergeVolumeMap(optVolumes(base), optVolumes(overlay)),
		Bindings:    mergeStringMap(optBindings(base), optBindings(overlay)),
	}
}

// Merge combines base (image- or tag-level, already folded via Combine
// when more than one non-binary layer is declared), overlay
// (binary-level), and the project-wide shell config into a frozen,
// per-binary run configuration. It returns (nil, nil) when all three
// inputs are absent.
func Merge(base, overlay *manifest.RunConfig, shell *manifest.ShellConfig, ctx Context, lookupImagePath ImagePathLookup) (*lockdoc.FrozenRunConfig, error) {
	if base == nil && overlay == nil && shell == nil {
		return nil, nil
	}

	mergedEnv := mergeStringMap(optEnv(base), optEnv(overlay))
	mergedEnvFromHost := unionStrings(optEnvFromHost(base), optEnvFromHost(overlay))
	mergedExtraPaths := unionStrings(optExtraPaths(base), optExtraPaths(overlay))
	mergedVolumes := mergeVolumeMap(optVolumes(base), optVolumes(overlay))
	mergedBindings := mergeStringMap(optBindings(base), optBindings(overlay))

	if err := rejectForbiddenPath(shell, mergedEnv, mergedEnvFromHost); err != nil {
		return nil, err
	}

	env := mergedEnv
	if shell != nil && len(shell.Env) > 0 {
		// shell sits beneath the per-binary env: per-binary keys win.
		env = mergeStringMap(shell.Env, mergedEnv)
	}

	pathSynthesized := false
	if shell != nil && len(shell.ExtraPaths) > 0 {
		newPath, err := synthesizeShellPath(shell.ExtraPaths, ctx, lookupImagePath)
		if err != nil {
			return nil, err
		}
		if env == nil {
			env = map[string]string{}
		}
		env["PATH"] = newPath
		pathSynthesized = true
	}

	volumes, err := synthesizeVolumeNames(mergedVolumes, ctx)
	if err != nil {
		return nil, err
	}

	return &lockdoc.FrozenRunConfig{
		Env:             env,
		EnvFromHost:     sortedUnique(mergedEnvFromHost),
		ExtraPaths:      sortedUnique(mergedExtraPaths),
		Volumes:         volumes,
		Bindings:        mergedBindings,
		PathSynthesized: pathSynthesized,
	}, nil
}

func rejectForbiddenPath(shell *manifest.ShellConfig, env map[string]string, envFromHost []string) error {
	if shell != nil {
		if _, ok := shell.Env["PATH"]; ok {
			return avatarerr.New(avatarerr.CodeUsage, "Passing a custom PATH environment variable is forbidden")
		}
	}
	if _, ok := env["PATH"]; ok {
		return avatarerr.New(avatarerr.CodeUsage, "Passing a custom PATH environment variable is forbidden")
	}
	if lo.Contains(envFromHost, "PATH") {
		return avatarerr.New(avatarerr.CodeUsage, "Passing a custom PATH environment variable is forbidden")
	}
	return nil
}

// synthesizeShellPath implements spec.md's open-question resolution in
// section 9: absolute extraPaths entries are ignored here (they name a
// host path, meaningless inside the container); relative ones are rebased
// onto /playground and prepended to the image's own PATH.
func synthesizeShellPath(extraPaths []string, ctx Context, lookupImagePath ImagePathLookup) (string, error) {
	var rebased []string
	for _, p := range extraPaths {
		if path.IsAbs(p) {
			continue
		}
		rebased = append(rebased, path.Join("/playground", p))
	}

	imageRef := ctx.ImageName + ":" + ctx.Tag
	imagePath := ""
	if lookupImagePath != nil {
		var err error
		imagePath, err = lookupImagePath(imageRef)
		if err != nil {
			return "", err
		}
	}

	if imagePath == "" {
		return strings.Join(rebased, ":"), nil
	}
	if len(rebased) == 0 {
		return imagePath, nil
	}
	return strings.Join(rebased, ":") + ":" + imagePath, nil
}

func synthesizeVolumeNames(volumes map[string]manifest.Volume, ctx Context) ([]lockdoc.VolumeLock, error) {
	if len(volumes) == 0 {
		return nil, nil
	}

	paths := lo.Keys(volumes)
	sort.Strings(paths)

	result := make([]lockdoc.VolumeLock, 0, len(paths))
	for _, containerPath := range paths {
		vol := volumes[containerPath]
		name := vol.Name
		if name == "" {
			var err error
			name, err = synthesizeVolumeName(vol.Scope, containerPath, ctx)
			if err != nil {
				return nil, err
			}
		}
		result = append(result, lockdoc.VolumeLock{
			ContainerPath: containerPath,
			VolumeName:    name,
		})
	}
	return result, nil
}

func synthesizeVolumeName(scope manifest.VolumeScope, containerPath string, ctx Context) (string, error) {
	h16 := hashPrefix16(containerPath)

	switch scope {
	case manifest.ScopeProject, "":
		return "prj_" + ctx.ProjectInternalID + "_" + h16, nil
	case manifest.ScopeOCIImage:
		return "img_" + ctx.ProjectInternalID + "_" + ctx.imageRefDotted() + "_" + h16, nil
	case manifest.ScopeBinary:
		return "bin_" + ctx.ProjectInternalID + "_" + ctx.imageRefDotted() + "_" + ctx.BinaryName + "_" + h16, nil
	default:
		return "", avatarerr.New(avatarerr.CodeDataErr, "unknown volume scope %q", scope)
	}
}

// hashPrefix16 returns the hex encoding of the first 16 bytes of
// SHA-256(containerPath), per spec.md Invariant 5's definition of h16.
func hashPrefix16(containerPath string) string {
	sum := sha256.Sum256([]byte(containerPath))
	return hex.EncodeToString(sum[:16])
}

func optEnv(rc *manifest.RunConfig) map[string]string {
	if rc == nil {
		return nil
	}
	return rc.Env
}

func optEnvFromHost(rc *manifest.RunConfig) []string {
	if rc == nil {
		return nil
	}
	return rc.EnvFromHost
}

func optExtraPaths(rc *manifest.RunConfig) []string {
	if rc == nil {
		return nil
	}
	return rc.ExtraPaths
}

func optVolumes(rc *manifest.RunConfig) map[string]manifest.Volume {
	if rc == nil {
		return nil
	}
	return rc.Volumes
}

func optBindings(rc *manifest.RunConfig) map[string]string {
	if rc == nil {
		return nil
	}
	return rc.Bindings
}

// mergeStringMap merges two optional string maps; overlay wins on
// collision. Returns nil when both inputs are empty.
func mergeStringMap(base, overlay map[string]string) map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func mergeVolumeMap(base, overlay map[string]manifest.Volume) map[string]manifest.Volume {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]manifest.Volume, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// unionStrings set-unions two optional string slices.
func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	return lo.Uniq(append(append([]string{}, a...), b...))
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := lo.Uniq(in)
	sort.Strings(out)
	return out
}
