package spatial

import (
	"math"
	"math/rand"

	"github.com/axiomata/atomstore/errors"
)

// Projector deterministically reduces a high-dimensional embedding vector to
// a Point3D via landmark trilateration: each coordinate is the normalized
// cosine distance from the vector to one of three fixed reference vectors.
//
// The landmarks are generated once from a fixed seed and reused for the
// store's lifetime; two projectors built with the same (dimensions, seed)
// produce identical projections across processes and restarts.
type Projector struct {
	dims      int
	landmarks [3][]float32
}

// NewProjector builds a projector for vectors of the given dimensionality.
// The seed fixes the landmark basis; it must never change for a live store.
func NewProjector(dims int, seed int64) (*Projector, error) {
	if dims <= 0 {
		return nil, errors.Mark(errors.Newf("dimensions must be positive, got %d", dims), errors.ErrInvalidArgument)
	}

	// math/rand's generator is stable across Go releases for a fixed
	// seed, which is what makes the basis reproducible.
	rng := rand.New(rand.NewSource(seed))

	p := &Projector{dims: dims}
	for i := range p.landmarks {
		l := make([]float32, dims)
		var norm float64
		for j := range l {
			v := rng.NormFloat64()
			l[j] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		for j := range l {
			l[j] = float32(float64(l[j]) / norm)
		}
		p.landmarks[i] = l
	}
	return p, nil
}

// Dimensions returns the configured vector dimensionality.
func (p *Projector) Dimensions() int {
	return p.dims
}

// Project computes the 3D point for a vector. Fails with a dimension
// mismatch error if the vector's length does not match the configured
// dimensionality. Deterministic: the same vector always yields the same
// point.
func (p *Projector) Project(vector []float32) (Point3D, error) {
	if len(vector) != p.dims {
		return Point3D{}, errors.Mark(
			errors.Newf("vector has %d dimensions, store is configured for %d", len(vector), p.dims),
			errors.ErrDimensionMismatch,
		)
	}

	return Point3D{
		X: p.landmarkDistance(vector, 0),
		Y: p.landmarkDistance(vector, 1),
		Z: p.landmarkDistance(vector, 2),
	}, nil
}

// landmarkDistance maps cosine distance to the i-th landmark into [0,1].
func (p *Projector) landmarkDistance(vector []float32, i int) float64 {
	cos := cosineSimilarity(vector, p.landmarks[i])
	// Cosine similarity is in [-1,1]; distance (1-cos)/2 lands in [0,1].
	d := (1 - cos) / 2
	return clamp01(d)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
