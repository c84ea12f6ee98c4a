package store

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
)

func TestSemanticSearchFindsNearestVector(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	ids := make(map[int]atom.ID)
	for axis := 0; axis < testDims; axis++ {
		id, err := s.Ingest(ctx, IngestRequest{
			Content:  []byte{byte(axis)},
			Modality: atom.ModalityBlob,
			Vector:   unitVector(axis),
		})
		require.NoError(t, err)
		ids[axis] = id
	}

	// A query slightly off axis 2 must rank axis 2 first with near-perfect
	// similarity.
	query := unitVector(2)
	query[3] = 0.05

	results, err := s.SemanticSearch(ctx, query, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, ids[2], results[0].AtomID)
	assert.InDelta(t, 1.0, results[0].Score, 0.01)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSemanticSearchExactMatch(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(3))
	vec := make([]float32, testDims)
	for i := range vec {
		vec[i] = rng.Float32()
	}

	id, err := s.Ingest(ctx, IngestRequest{
		Content:  []byte("target"),
		Modality: atom.ModalityText,
		Vector:   vec,
	})
	require.NoError(t, err)

	results, err := s.SemanticSearch(ctx, vec, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].AtomID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestSemanticSearchEmptyStore(t *testing.T) {
	s := newTestStore(t, nil)

	results, err := s.SemanticSearch(context.Background(), unitVector(0), 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticSearchValidation(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, err := s.SemanticSearch(ctx, unitVector(0), 0, 0)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = s.SemanticSearch(ctx, make([]float32, testDims-1), 5, 0)
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestSemanticSearchHonorsCandidateCap(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 30; i++ {
		vec := make([]float32, testDims)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		_, err := s.Ingest(ctx, IngestRequest{
			Content:  []byte{byte(i), byte(i >> 8), 0xFE},
			Modality: atom.ModalityBlob,
			Vector:   vec,
		})
		require.NoError(t, err)
	}

	// A candidate cap below topK bounds the result set.
	results, err := s.SemanticSearch(ctx, unitVector(1), 10, 4)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 4)
	assert.NotEmpty(t, results)
}

func TestSemanticSearchSkipsAtomsWithoutEmbeddings(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, err := s.Ingest(ctx, IngestRequest{Content: []byte("no vector"), Modality: atom.ModalityText})
	require.NoError(t, err)
	id, err := s.Ingest(ctx, IngestRequest{
		Content:  []byte("with vector"),
		Modality: atom.ModalityText,
		Vector:   unitVector(4),
	})
	require.NoError(t, err)

	results, err := s.SemanticSearch(ctx, unitVector(4), 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].AtomID)
}
