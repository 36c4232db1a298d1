package geo

// Affine is a 3x3 georeferencing matrix in row-major order. The last row of a
// 2D transform is always 0, 0, 1. It marshals to JSON as a plain array.
type Affine [9]float64

// AffineFromBounds returns the transform of a raster with the given
// geographic bounds and pixel dimensions.
func AffineFromBounds(west, south, east, north float64, width, height int) Affine {
	return Affine{
		(east - west) / float64(width), 0, west,
		0, (south - north) / float64(height), north,
		0, 0, 1,
	}
}

// AffineFromOrigin returns the transform of a raster with the given upper
// left corner and pixel sizes. ysize is positive for north-up rasters.
func AffineFromOrigin(west, north, xsize, ysize float64) Affine {
	return Affine{
		xsize, 0, west,
		0, -ysize, north,
		0, 0, 1,
	}
}

// Slice returns the matrix as a []float64 for JSON embedding.
func (a Affine) Slice() []float64 {
	out := make([]float64, len(a))
	copy(out, a[:])
	return out
}
