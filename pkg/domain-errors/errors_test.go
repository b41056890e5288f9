package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "lost the race"))
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("Wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(cause, CodeStorageFailure, "upload failed")
		require.ErrorIs(t, err, cause)
		assert.Equal(t, CodeStorageFailure, CodeOf(err))
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	})

	t.Run("WithDetail does not mutate the receiver", func(t *testing.T) {
		base := New(CodeInvalidTransition, "nope")
		withFrom := base.WithDetail("current_state", "submitted")
		assert.Empty(t, base.Details)
		assert.Equal(t, "submitted", withFrom.Details["current_state"])
	})
}
