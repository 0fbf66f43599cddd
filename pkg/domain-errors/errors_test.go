package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeValidation, "bad input")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		inner := New(CodeAIUnavailable, "provider down")
		err := Wrap(inner, CodeFusion, "fallback disabled")
		assert.True(t, HasCode(err, CodeFusion))
		assert.True(t, HasCode(err, CodeAIUnavailable))
		assert.Equal(t, CodeFusion, CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "save decision")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal_error: save decision: connection refused", err.Error())
}
