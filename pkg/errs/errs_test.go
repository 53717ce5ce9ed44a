package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "gone")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeCorrupt, CodeOf(fmt.Errorf("outer: %w", New(CodeCorrupt, "bad payload"))))
}

func TestIsMatchesCodeAndMessage(t *testing.T) {
	named := New(CodeStateMismatch, "not pending")

	assert.ErrorIs(t, New(CodeStateMismatch, "not pending"), named)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", New(CodeStateMismatch, "not pending")), named)
	assert.NotErrorIs(t, New(CodeStateMismatch, "different message"), named)
	assert.NotErrorIs(t, New(CodeNotFound, "not pending"), named)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(cause, CodeUnavailable, "commit failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Contains(t, err.Error(), "commit failed")
	assert.Contains(t, err.Error(), "disk on fire")
}
