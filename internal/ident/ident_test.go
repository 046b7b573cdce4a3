package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSixteenAlphanumericChars(t *testing.T) {
	id := New()
	assert.Len(t, id, Length)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "unexpected rune %q", r)
	}
}

func TestNewIsUnique(t *testing.T) {
	assert.NotEqual(t, New(), New())
}
