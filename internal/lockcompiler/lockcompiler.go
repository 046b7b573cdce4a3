// Package lockcompiler implements the lock compiler (spec.md section
// 4.E): drives the image resolver over every (image_name, tag) in the
// Manifest, merges run-configurations for every declared binary, and
// assembles + persists the Lock document.
package lockcompiler

import (
	"sort"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/docstore"
	"github.com/avatar-cli/avatar/internal/imageresolver"
	"github.com/avatar-cli/avatar/internal/lockdoc"
	"github.com/avatar-cli/avatar/internal/manifest"
	"github.com/avatar-cli/avatar/internal/runconfig"
	"github.com/sirupsen/logrus"
)

// Compiler drives the lock compiler (spec.md 4.E).
type Compiler struct {
	Resolver        *imageresolver.Resolver
	LookupImagePath runconfig.ImagePathLookup
	Log             *logrus.Entry
}

// Compile resolves every image in man, merges every binary's effective
// run configuration, and returns the assembled Lock (not yet persisted).
func (c *Compiler) Compile(man manifest.Manifest, manifestHash string) (lockdoc.Lock, error) {
	lock := lockdoc.Lock{
		ProjectConfigHash: manifestHash,
		ProjectInternalID: man.ProjectInternalID,
		Images:            map[string]map[string]lockdoc.LockedImage{},
		Binaries:          map[string]lockdoc.LockedBinary{},
	}

	if man.ShellConfig != nil {
		lock.ShellConfig = &lockdoc.ShellConfig{
			Env:        man.ShellConfig.Env,
			ExtraPaths: man.ShellConfig.ExtraPaths,
		}
	}

	imageNames := sortedKeys(man.Images)
	for _, imageName := range imageNames {
		imageEntry := man.Images[imageName]
		tags := sortedTagKeys(imageEntry.Tags)
		lock.Images[imageName] = map[string]lockdoc.LockedImage{}

		for _, tag := range tags {
			tagConfig := imageEntry.Tags[tag]

			digest, err := c.Resolver.Resolve(imageName, tag)
			if err != nil {
				return lockdoc.Lock{}, err
			}

			tagBase := runconfig.Combine(imageEntry.RunConfig, tagConfig.RunConfig)
			frozenTagConfig, err := runconfig.Merge(tagBase, nil, nil, runconfig.Context{
				ProjectInternalID: man.ProjectInternalID,
				ImageName:         imageName,
				Tag:               tag,
			}, c.LookupImagePath)
			if err != nil {
				return lockdoc.Lock{}, err
			}

			lock.Images[imageName][tag] = lockdoc.LockedImage{
				Hash:      digest,
				RunConfig: frozenTagConfig,
			}

			binaryNames := sortedBinaryKeys(tagConfig.Binaries)
			for _, binaryName := range binaryNames {
				binaryConfig := tagConfig.Binaries[binaryName]

				if _, exists := lock.Binaries[binaryName]; exists {
					return lockdoc.Lock{}, avatarerr.New(avatarerr.CodeDataErr, "Duplicated binary definition: %s", binaryName)
				}

				binaryPath := binaryConfig.Path
				if binaryPath == "" {
					binaryPath = "/" + binaryName
				}

				frozen, err := runconfig.Merge(tagBase, binaryConfig.RunConfig, man.ShellConfig, runconfig.Context{
					ProjectInternalID: man.ProjectInternalID,
					ImageName:         imageName,
					Tag:               tag,
					BinaryName:        binaryName,
				}, c.LookupImagePath)
				if err != nil {
					return lockdoc.Lock{}, err
				}

				lock.Binaries[binaryName] = lockdoc.LockedBinary{
					OCIImageName: imageName,
					OCIImageHash: digest,
					Path:         binaryPath,
					RunConfig:    frozen,
				}
			}
		}
	}

	return lock, nil
}

// CompileAndPersist runs Compile and writes the resulting Lock to
// lockPath, returning the Lock and the SHA-256 of its persisted bytes
// (spec.md 4.E).
func (c *Compiler) CompileAndPersist(man manifest.Manifest, manifestHash, lockPath string) (lockdoc.Lock, string, error) {
	lock, err := c.Compile(man, manifestHash)
	if err != nil {
		return lockdoc.Lock{}, "", err
	}

	hash, err := docstore.Save(lockPath, lock)
	if err != nil {
		return lockdoc.Lock{}, "", err
	}

	return lock, hash, nil
}

func sortedKeys(m map[string]manifest.ImageEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTagKeys(m map[string]manifest.TagConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedBinaryKeys(m map[string]manifest.BinaryConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
