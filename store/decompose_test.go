package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomata/atomstore/errors"
)

func TestFixedSizeDecomposer(t *testing.T) {
	tests := []struct {
		name      string
		content   int
		chunkSize int
		maxBytes  int
		want      int
	}{
		{"exact multiple", 128, 64, 64, 2},
		{"remainder chunk", 100, 64, 64, 2},
		{"single chunk", 10, 64, 64, 1},
		{"empty content", 0, 64, 64, 0},
		{"zero size falls back to cap", 128, 0, 64, 2},
		{"oversized chunk clamped to cap", 128, 1000, 64, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := bytes.Repeat([]byte{0xAB}, tt.content)
			d := &FixedSizeDecomposer{ChunkSize: tt.chunkSize}

			chunks, err := d.Decompose(content, tt.maxBytes)
			require.NoError(t, err)
			assert.Len(t, chunks, tt.want)

			var total int
			for _, c := range chunks {
				assert.LessOrEqual(t, len(c), tt.maxBytes)
				total += len(c)
			}
			assert.Equal(t, tt.content, total)
		})
	}
}

func TestFixedSizeDecomposerReassembles(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog, repeatedly and at length")
	d := &FixedSizeDecomposer{ChunkSize: 16}

	chunks, err := d.Decompose(content, 16)
	require.NoError(t, err)

	var assembled []byte
	for _, c := range chunks {
		assembled = append(assembled, c...)
	}
	assert.Equal(t, content, assembled)
}

func TestFixedSizeDecomposerInvalidCap(t *testing.T) {
	d := &FixedSizeDecomposer{ChunkSize: 16}
	_, err := d.Decompose([]byte("x"), 0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}
