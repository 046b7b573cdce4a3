package avatarerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeExtractsMappedCode(t *testing.T) {
	err := New(CodeDataErr, "lock mismatch: %s", "Avatarfile.lock")
	assert.Equal(t, CodeDataErr, ExitCode(err))
	assert.Contains(t, err.Error(), "lock mismatch: Avatarfile.lock")
}

func TestExitCodeDefaultsToSoftwareForUnknownError(t *testing.T) {
	assert.Equal(t, CodeSoftware, ExitCode(errors.New("boom")))
}

func TestWrapStackPreservesMessage(t *testing.T) {
	original := New(CodeUsage, "bad argv")
	wrapped := WrapStack(original)
	assert.Contains(t, wrapped.Error(), "bad argv")
}

func TestWrapStackNilIsNil(t *testing.T) {
	assert.Nil(t, WrapStack(nil))
}
