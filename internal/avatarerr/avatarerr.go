// Package avatarerr maps the core's typed errors onto sysexits-style process
// exit codes. The core never calls os.Exit itself; only main.go's entry
// point does, after classifying whatever bubbled up through Run.
package avatarerr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Code is a sysexits-style exit code, per spec.md section 6.
type Code int

const (
	// CodeUsage covers bad argv, wrong cwd, and nested sessions.
	CodeUsage Code = 64
	// CodeDataErr covers malformed on-disk documents and hash-chain mismatches.
	CodeDataErr Code = 65
	// CodeNoInput covers missing required files.
	CodeNoInput Code = 66
	// CodeCantCreat covers directory/symlink creation failure.
	CodeCantCreat Code = 73
	// CodeIOErr covers permission and other I/O failures.
	CodeIOErr Code = 74
	// CodeOSErr covers OS calls (cwd, exec) failing.
	CodeOSErr Code = 71
	// CodeSoftware covers internal invariant violations.
	CodeSoftware Code = 70
	// CodeProtocol covers unparseable runtime output.
	CodeProtocol Code = 76
	// CodeUnavailable covers a missing/unreachable container runtime.
	CodeUnavailable Code = 69
	// CodeConfig covers a missing required env var in shim mode.
	CodeConfig Code = 78
)

// AvatarError carries a user-facing message and the exit code it maps to.
// It implements xerrors' Formatter so a frame is recorded at the point of
// construction, the way commands.ComplexError does in the teacher repo.
type AvatarError struct {
	Message string
	Code    Code
	frame   xerrors.Frame
}

// New builds an AvatarError, capturing the current stack frame.
func New(code Code, format string, args ...interface{}) *AvatarError {
	return &AvatarError{
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		frame:   xerrors.Caller(1),
	}
}

// Error implements error.
func (e *AvatarError) Error() string {
	return fmt.Sprint(e)
}

// Format is the fmt.Formatter entry point used by FormatError.
func (e *AvatarError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// FormatError implements xerrors.Formatter.
func (e *AvatarError) FormatError(p xerrors.Printer) error {
	p.Printf("%s", e.Message)
	e.frame.Format(p)
	return nil
}

// ExitCode extracts the mapped Code from err, defaulting to CodeSoftware
// when err does not carry one (a theoretically impossible branch was hit).
func ExitCode(err error) Code {
	var avatarError *AvatarError
	if xerrors.As(err, &avatarError) {
		return avatarError.Code
	}
	return CodeSoftware
}

// WrapStack wraps err with a captured stack trace for diagnostic logging,
// mirroring commands.WrapError in the teacher repo.
func WrapStack(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 0)
}

// StackTrace renders a full stack trace for err, for the development log.
func StackTrace(err error) string {
	wrapped := goerrors.Wrap(err, 1)
	return wrapped.ErrorStack()
}
