package spatial

// Bucket discretizes a point in the unit cube onto a coarse grid cells-per-
// axis grid and returns a flat bucket id in [0, cells^3). Atoms sharing a
// bucket are near in projected space, making bucket membership an O(1)
// pre-filter before exact distance scoring.
func Bucket(p Point3D, cells int) uint32 {
	n := uint32(cells)
	ix := quantize(p.X, n)
	iy := quantize(p.Y, n)
	iz := quantize(p.Z, n)
	return (ix*n+iy)*n + iz
}
