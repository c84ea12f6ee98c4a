// Package spatial reduces high-dimensional embedding vectors to 3D points,
// orders them on a Hilbert space-filling curve, and indexes them in an
// in-memory R-tree for sub-linear range and nearest-neighbor queries.
package spatial

import "math"

// Point3D is a point in the unit cube [0,1]^3 produced by the landmark
// projection.
type Point3D struct {
	X, Y, Z float64
}

// Distance returns the Euclidean distance between two points.
func (p Point3D) Distance(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Min, Max Point3D
}

// rectFromPoint returns the degenerate box containing a single point.
func rectFromPoint(p Point3D) Rect {
	return Rect{Min: p, Max: p}
}

// contains reports whether the box contains p (inclusive).
func (r Rect) contains(p Point3D) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y &&
		p.Z >= r.Min.Z && p.Z <= r.Max.Z
}

// intersects reports whether two boxes overlap.
func (r Rect) intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && r.Max.X >= o.Min.X &&
		r.Min.Y <= o.Max.Y && r.Max.Y >= o.Min.Y &&
		r.Min.Z <= o.Max.Z && r.Max.Z >= o.Min.Z
}

// expand grows the box to contain o.
func (r Rect) expand(o Rect) Rect {
	return Rect{
		Min: Point3D{
			X: math.Min(r.Min.X, o.Min.X),
			Y: math.Min(r.Min.Y, o.Min.Y),
			Z: math.Min(r.Min.Z, o.Min.Z),
		},
		Max: Point3D{
			X: math.Max(r.Max.X, o.Max.X),
			Y: math.Max(r.Max.Y, o.Max.Y),
			Z: math.Max(r.Max.Z, o.Max.Z),
		},
	}
}

// volume returns the box's volume.
func (r Rect) volume() float64 {
	return (r.Max.X - r.Min.X) * (r.Max.Y - r.Min.Y) * (r.Max.Z - r.Min.Z)
}

// enlargement returns how much the box's volume would grow to absorb o.
func (r Rect) enlargement(o Rect) float64 {
	return r.expand(o).volume() - r.volume()
}

// minDist returns the minimum distance from p to any point in the box;
// zero when p is inside. This is the lower bound used to prune subtrees
// during branch-and-bound KNN traversal.
func (r Rect) minDist(p Point3D) float64 {
	dx := axisDist(p.X, r.Min.X, r.Max.X)
	dy := axisDist(p.Y, r.Min.Y, r.Max.Y)
	dz := axisDist(p.Z, r.Min.Z, r.Max.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func axisDist(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}
