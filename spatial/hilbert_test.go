package spatial

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomata/atomstore/errors"
)

func TestEncodeHilbertDeterministic(t *testing.T) {
	p := Point3D{X: 0.3, Y: 0.7, Z: 0.1}
	a, err := EncodeHilbert(p, 10)
	require.NoError(t, err)
	b, err := EncodeHilbert(p, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeHilbertOrderBounds(t *testing.T) {
	p := Point3D{X: 0.5, Y: 0.5, Z: 0.5}

	for _, order := range []int{0, -1, 21} {
		_, err := EncodeHilbert(p, order)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidArgument(err))
	}

	for _, order := range []int{1, 10, MaxHilbertOrder} {
		_, err := EncodeHilbert(p, order)
		assert.NoError(t, err)
	}
}

// Every cell of a small grid must map to a distinct index covering the full
// range [0, 8^order) - the curve is a bijection on grid cells.
func TestHilbertBijectionSmallOrder(t *testing.T) {
	const order = 3
	const cells = 1 << order // 8 per axis

	seen := make(map[uint64]bool)
	for ix := 0; ix < cells; ix++ {
		for iy := 0; iy < cells; iy++ {
			for iz := 0; iz < cells; iz++ {
				p := Point3D{
					X: (float64(ix) + 0.5) / cells,
					Y: (float64(iy) + 0.5) / cells,
					Z: (float64(iz) + 0.5) / cells,
				}
				h, err := EncodeHilbert(p, order)
				require.NoError(t, err)
				assert.False(t, seen[h], "duplicate hilbert index %d", h)
				assert.Less(t, h, uint64(cells*cells*cells))
				seen[h] = true

				// Round trip through decode lands in the same cell.
				back, err := DecodeHilbert(h, order)
				require.NoError(t, err)
				assert.Equal(t, p, back)
			}
		}
	}
	assert.Len(t, seen, cells*cells*cells)
}

// Consecutive curve indices must address adjacent grid cells - the defining
// continuity property of the Hilbert curve.
func TestHilbertAdjacency(t *testing.T) {
	const order = 4
	total := uint64(1) << (3 * order)

	prev, err := DecodeHilbert(0, order)
	require.NoError(t, err)
	cell := 1.0 / float64(uint64(1)<<order)

	for h := uint64(1); h < total; h++ {
		cur, err := DecodeHilbert(h, order)
		require.NoError(t, err)

		manhattan := (math.Abs(cur.X-prev.X) + math.Abs(cur.Y-prev.Y) + math.Abs(cur.Z-prev.Z)) / cell
		assert.InDelta(t, 1.0, manhattan, 1e-9, "curve step %d jumps %f cells", h, manhattan)
		prev = cur
	}
}

// The projection quality contract: rank correlation between Hilbert-index
// distance and Euclidean distance over sampled point pairs must be at least
// 0.85.
func TestHilbertLocalityCorrelation(t *testing.T) {
	const order = 10
	const pairs = 2000

	rng := rand.New(rand.NewSource(42))
	randPoint := func() Point3D {
		return Point3D{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	}

	indexDist := make([]float64, 0, pairs)
	spaceDist := make([]float64, 0, pairs)

	for i := 0; i < pairs; i++ {
		a := randPoint()
		var b Point3D
		if i%2 == 0 {
			// Far pairs: independent uniform samples.
			b = randPoint()
		} else {
			// Near pairs: perturbations at mixed scales.
			scale := math.Pow(10, -1-2*rng.Float64())
			b = Point3D{
				X: clamp01(a.X + rng.NormFloat64()*scale),
				Y: clamp01(a.Y + rng.NormFloat64()*scale),
				Z: clamp01(a.Z + rng.NormFloat64()*scale),
			}
		}

		ha, err := EncodeHilbert(a, order)
		require.NoError(t, err)
		hb, err := EncodeHilbert(b, order)
		require.NoError(t, err)

		var hd float64
		if ha > hb {
			hd = float64(ha - hb)
		} else {
			hd = float64(hb - ha)
		}
		indexDist = append(indexDist, hd)
		spaceDist = append(spaceDist, a.Distance(b))
	}

	rho := spearman(indexDist, spaceDist)
	t.Logf("spearman correlation: %.4f over %d pairs", rho, pairs)
	assert.GreaterOrEqual(t, rho, 0.85, "hilbert ordering must preserve spatial locality")
}

// spearman computes the Spearman rank correlation of two equal-length
// samples.
func spearman(xs, ys []float64) float64 {
	rx := ranks(xs)
	ry := ranks(ys)
	return pearson(rx, ry)
}

func ranks(vals []float64) []float64 {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return vals[idx[i]] < vals[idx[j]] })

	out := make([]float64, len(vals))
	for rank, i := range idx {
		out[i] = float64(rank)
	}
	return out
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
