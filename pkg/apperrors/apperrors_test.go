package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("missing")))
	assert.Equal(t, CodeForbidden, CodeOf(Forbidden("nope")))
	assert.Equal(t, CodeValidation, CodeOf(Validation("bad")))
	assert.Equal(t, CodeUnauthorized, CodeOf(Unauthorized("denied")))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := Forbidden("not the sender")
	wrapped := fmt.Errorf("deleting message: %w", inner)
	assert.Equal(t, CodeForbidden, CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, inner)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeInternal, "store unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}
