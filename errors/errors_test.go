package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestMarkPreservesSentinel(t *testing.T) {
	cause := New("disk I/O error")
	err := Mark(Wrap(cause, "inserting atom"), ErrStorage)

	assert.True(t, Is(err, ErrStorage))
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "inserting atom")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"storage", Mark(New("db down"), ErrStorage), true},
		{"timeout", Mark(New("deadline"), ErrTimeout), true},
		{"cycle", Mark(New("loop"), ErrCycleDetected), false},
		{"dimension", Mark(New("bad vec"), ErrDimensionMismatch), false},
		{"invalid argument", Mark(New("k<=0"), ErrInvalidArgument), false},
		{"not found", Mark(New("gone"), ErrNotFound), false},
		{"unclassified", New("mystery"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	err := Wrap(Mark(New("atom 42 missing"), ErrNotFound), "lineage lookup")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(New("other")))
	assert.False(t, IsNotFound(nil))
}

func TestIsInvalidArgument(t *testing.T) {
	err := Mark(Newf("k must be positive, got %d", -1), ErrInvalidArgument)
	assert.True(t, IsInvalidArgument(err))
	assert.False(t, IsInvalidArgument(nil))
}
