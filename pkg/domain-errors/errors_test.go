package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := New(CodeNotFound, "diagnosis not found")

	assert.True(t, HasCode(base, CodeNotFound))
	assert.False(t, HasCode(base, CodeLocked))

	wrapped := Wrap(base, CodeUnavailable, "store degraded")
	assert.True(t, HasCode(wrapped, CodeUnavailable))
	assert.True(t, HasCode(wrapped, CodeNotFound), "inner codes stay visible through wrapping")

	plain := fmt.Errorf("outer: %w", base)
	assert.True(t, HasCode(plain, CodeNotFound), "fmt wrapping preserves the code")

	assert.False(t, HasCode(errors.New("unrelated"), CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("raw")))
	assert.Equal(t, CodeProvider, CodeOf(New(CodeProvider, "model call failed")))
	assert.Equal(t, CodePayment, CodeOf(Wrap(New(CodeNotFound, "x"), CodePayment, "y")),
		"outermost code wins")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "store unreachable")
	assert.ErrorIs(t, err, cause)
}
