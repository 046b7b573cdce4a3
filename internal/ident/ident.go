// Package ident generates the short alphanumeric identifiers avatar stamps
// onto projects, sessions, and processes (project_internal_id, session and
// process tokens). Grounded on the pack's use of google/uuid for opaque
// identifiers (banksean-sand's shell_cmd.go uses uuid.NewString() for
// session IDs); avatar truncates the UUID's hex digits to the 16-char
// alphanumeric shape spec.md requires.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// Length is the fixed length of every identifier avatar generates.
const Length = 16

// New returns a fresh 16-char lowercase alphanumeric identifier.
func New() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:Length]
}
