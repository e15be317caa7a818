package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrStoreUnavailable, "elasticsearch unreachable", cause)

	assert.Contains(t, err.Error(), "STORE_UNAVAILABLE")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestError_Helpers(t *testing.T) {
	err := NewError(ErrRetrieverFailed, "index timeout").
		WithRetryable(true).
		WithRetriever("baseline_vector")

	assert.True(t, IsRetryable(err))
	assert.True(t, IsErrorCode(err, ErrRetrieverFailed))
	assert.False(t, IsErrorCode(err, ErrTimeout))
	assert.Equal(t, ErrRetrieverFailed, GetErrorCode(err))
	assert.Equal(t, "baseline_vector", AsError(err).Retriever)

	// 经 %w 包装后仍能识别
	wrapped := fmt.Errorf("fuse: %w", err)
	assert.Equal(t, ErrRetrieverFailed, GetErrorCode(wrapped))
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, IsConfigError(NewError(ErrUnknownRetriever, "no such type")))
	assert.True(t, IsConfigError(NewError(ErrUnknownPrompt, "no such prompt")))
	assert.False(t, IsConfigError(NewError(ErrRetrieverFailed, "boom")))
	assert.False(t, IsConfigError(errors.New("plain")))
}
