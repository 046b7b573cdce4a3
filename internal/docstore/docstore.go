// Package docstore implements the Manifest/Lock/State codec (spec.md
// section 4.B): reading a file as raw bytes, hashing those bytes, and
// parsing them into a target document with the same serializer used to
// write it. The teacher repo's config codec (pkg/config, via
// github.com/jesseduffield/yaml) is the grounding for using one YAML
// library for both directions of the round trip.
package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	yaml "github.com/jesseduffield/yaml"
)

// Loaded bundles a parsed document with the SHA-256 of the raw bytes it
// was parsed from, since every later stage (lock compiler, reconciler)
// needs both.
type Loaded[T any] struct {
	Doc  T
	Hash string
}

// HashBytes returns the lowercase hex SHA-256 digest of raw.
func HashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Marshal serializes doc using the canonical serializer (jesseduffield/yaml),
// the same one used to persist documents to disk, so that hashing and
// writing never disagree about a document's "canonical bytes".
func Marshal[T any](doc T) ([]byte, error) {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, avatarerr.New(avatarerr.CodeSoftware, "failed to serialize document: %s", err)
	}
	return raw, nil
}

// HashOf returns the canonical content hash of doc.
func HashOf[T any](doc T) (string, error) {
	raw, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	return HashBytes(raw), nil
}

// Load reads path, hashes its raw bytes, and parses it as T. Missing files
// map to CodeNoInput, permission errors to CodeIOErr, and parse failures
// to CodeDataErr naming the offending path.
func Load[T any](path string) (Loaded[T], error) {
	var zero Loaded[T]

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, avatarerr.New(avatarerr.CodeNoInput, "required file does not exist: %s", path)
		}
		if errors.Is(err, os.ErrPermission) {
			return zero, avatarerr.New(avatarerr.CodeIOErr, "permission denied reading %s", path)
		}
		return zero, avatarerr.New(avatarerr.CodeIOErr, "failed to read %s: %s", path, err)
	}

	var doc T
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return zero, avatarerr.New(avatarerr.CodeDataErr, "failed to parse %s: %s", path, err)
	}

	return Loaded[T]{Doc: doc, Hash: HashBytes(raw)}, nil
}

// IsRegular reports whether path exists and is a regular file. It returns
// (false, false, nil) when the path does not exist at all, and
// (true, false, nil) when it exists but is not a regular file (a
// directory, symlink to a directory, device, etc).
func IsRegular(path string) (exists bool, regular bool, err error) {
	info, statErr := os.Lstat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, avatarerr.New(avatarerr.CodeIOErr, "failed to stat %s: %s", path, statErr)
	}
	return true, info.Mode().IsRegular(), nil
}

// Save serializes doc and writes it to path. It does not create parent
// directories; path's directory must already exist. It returns the hash
// of the bytes written.
func Save[T any](path string, doc T) (string, error) {
	raw, err := Marshal(doc)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", avatarerr.New(avatarerr.CodeIOErr, "failed to write %s: %s", path, err)
	}

	return HashBytes(raw), nil
}
