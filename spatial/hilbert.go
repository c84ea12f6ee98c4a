package spatial

import (
	"github.com/axiomata/atomstore/errors"
)

// MaxHilbertOrder bounds the curve precision so the 3*order index bits stay
// well inside a non-negative int64 (SQLite INTEGER) range.
const MaxHilbertOrder = 20

// EncodeHilbert maps a point in the unit cube onto a 3D Hilbert space-filling
// curve of the given order (bits per dimension) and returns the curve index.
// Near points in space receive near indices, which makes the index usable as
// a B-tree-orderable coarse locality key.
//
// The order must be consistent across the entire store: changing it
// invalidates every previously computed index.
func EncodeHilbert(p Point3D, order int) (uint64, error) {
	if order < 1 || order > MaxHilbertOrder {
		return 0, errors.Mark(errors.Newf("hilbert order must be in [1,%d], got %d", MaxHilbertOrder, order), errors.ErrInvalidArgument)
	}

	n := uint32(1) << order
	coords := [3]uint32{
		quantize(p.X, n),
		quantize(p.Y, n),
		quantize(p.Z, n),
	}
	axesToTranspose(&coords, order)
	return interleaveTransposed(coords, order), nil
}

// DecodeHilbert inverts EncodeHilbert, returning the center of the grid cell
// the index addresses. Used for index maintenance and verification.
func DecodeHilbert(index uint64, order int) (Point3D, error) {
	if order < 1 || order > MaxHilbertOrder {
		return Point3D{}, errors.Mark(errors.Newf("hilbert order must be in [1,%d], got %d", MaxHilbertOrder, order), errors.ErrInvalidArgument)
	}

	coords := deinterleaveTransposed(index, order)
	transposeToAxes(&coords, order)

	cell := float64(uint64(1) << order)
	return Point3D{
		X: (float64(coords[0]) + 0.5) / cell,
		Y: (float64(coords[1]) + 0.5) / cell,
		Z: (float64(coords[2]) + 0.5) / cell,
	}, nil
}

func quantize(v float64, n uint32) uint32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return n - 1
	}
	q := uint32(v * float64(n))
	if q > n-1 {
		q = n - 1
	}
	return q
}

// axesToTranspose converts grid coordinates into Skilling's transposed
// Hilbert representation in place (Skilling, "Programming the Hilbert
// curve", AIP Conf. Proc. 707).
func axesToTranspose(x *[3]uint32, order int) {
	m := uint32(1) << (order - 1)

	// Inverse undo
	for q := m; q > 1; q >>= 1 {
		p := q - 1
		for i := 0; i < 3; i++ {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t := (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}

	// Gray encode
	for i := 1; i < 3; i++ {
		x[i] ^= x[i-1]
	}
	var t uint32
	for q := m; q > 1; q >>= 1 {
		if x[2]&q != 0 {
			t ^= q - 1
		}
	}
	for i := 0; i < 3; i++ {
		x[i] ^= t
	}
}

// transposeToAxes inverts axesToTranspose in place.
func transposeToAxes(x *[3]uint32, order int) {
	m := uint32(1) << (order - 1)

	// Gray decode by H ^ (H/2)
	t := x[2] >> 1
	for i := 2; i > 0; i-- {
		x[i] ^= x[i-1]
	}
	x[0] ^= t

	// Undo excess work
	for q := uint32(2); q != m<<1; q <<= 1 {
		p := q - 1
		for i := 2; i >= 0; i-- {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t := (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}
}

// interleaveTransposed packs the transposed coordinates into a single index,
// MSB-first, with x[0] contributing the most significant bit of each group.
func interleaveTransposed(x [3]uint32, order int) uint64 {
	var out uint64
	for bit := order - 1; bit >= 0; bit-- {
		for dim := 0; dim < 3; dim++ {
			out = (out << 1) | uint64((x[dim]>>uint(bit))&1)
		}
	}
	return out
}

func deinterleaveTransposed(index uint64, order int) [3]uint32 {
	var x [3]uint32
	for bit := order - 1; bit >= 0; bit-- {
		for dim := 0; dim < 3; dim++ {
			shift := uint(bit*3 + (2 - dim))
			x[dim] |= uint32((index>>shift)&1) << uint(bit)
		}
	}
	return x
}
