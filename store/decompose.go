package store

import (
	"github.com/axiomata/atomstore/errors"
)

// Decomposer splits content that exceeds the atomic payload cap into chunks
// that each fit under it. The store links the chunks to a synthetic
// composite parent atom with composed-of edges, so decomposed content stays
// addressable and lineage-traceable.
type Decomposer interface {
	// Decompose splits content into chunks, each at most maxBytes long.
	// Chunk order is significant and preserved through edge insertion
	// order.
	Decompose(content []byte, maxBytes int) ([][]byte, error)
}

// FixedSizeDecomposer chunks content into consecutive runs of ChunkSize
// bytes. It is the default strategy; semantic chunkers can be swapped in via
// Store.SetDecomposer.
type FixedSizeDecomposer struct {
	// ChunkSize is the target chunk length. Values outside (0, maxBytes]
	// are clamped to maxBytes.
	ChunkSize int
}

func (d *FixedSizeDecomposer) Decompose(content []byte, maxBytes int) ([][]byte, error) {
	if maxBytes <= 0 {
		return nil, errors.Mark(
			errors.Newf("decompose: non-positive payload cap %d", maxBytes),
			errors.ErrInvalidArgument)
	}

	size := d.ChunkSize
	if size <= 0 || size > maxBytes {
		size = maxBytes
	}

	chunks := make([][]byte, 0, (len(content)+size-1)/size)
	for off := 0; off < len(content); off += size {
		end := off + size
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, content[off:end])
	}
	return chunks, nil
}
