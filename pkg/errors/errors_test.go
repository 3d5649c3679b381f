package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", Clone(ErrNotFound, "grade record not found"))

	appErr := FromError(wrapped)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "grade record not found", appErr.Message)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("boom")

	appErr := FromError(cause)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, cause)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "threshold must be numeric")
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Equal(t, "threshold must be numeric", clone.Message)
	assert.True(t, errors.Is(ErrCacheMiss, ErrCacheMiss))
}
