package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "direct", err: New(GitFailure, "push failed"), want: GitFailure},
		{name: "wrapped_cause", err: Wrap(CIFailed, errors.New("lint"), "checks failed"), want: CIFailed},
		{name: "wrapped_with_fmt", err: fmt.Errorf("outer: %w", New(LockHeld, "busy")), want: LockHeld},
		{name: "plain_error", err: errors.New("boom"), want: Internal},
		{name: "nil", err: nil, want: Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 128")
	err := Wrap(GitFailure, cause, "rebase failed")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "git-failure")
	assert.Contains(t, err.Error(), "rebase failed")
	assert.Contains(t, err.Error(), "exit status 128")
}

func TestIs(t *testing.T) {
	t.Parallel()

	err := New(DuplicateOpenPR, "two open PRs for feature/x")
	assert.True(t, Is(err, DuplicateOpenPR))
	assert.False(t, Is(err, GitFailure))
}
