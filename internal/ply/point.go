package ply

import "github.com/banshee-data/cloudblocks/internal/colorspace"

// Point is one vertex after axis remapping. Lab is derived from Color on
// ingest and is not recomputed afterwards.
type Point struct {
	X, Y, Z float32
	Color   colorspace.RGB
	Lab     colorspace.Lab
}

// Coord returns the coordinate on axis 0 (x), 1 (y) or 2 (z).
func (p Point) Coord(axis int) float32 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// Bounds is the axis-aligned bounding box of a set of points.
type Bounds struct {
	Min, Max [3]float32
}

// BoundsOf seeds a box from p.
func BoundsOf(p Point) Bounds {
	c := [3]float32{p.X, p.Y, p.Z}
	return Bounds{Min: c, Max: c}
}

// Extend grows b to contain p.
func (b *Bounds) Extend(p Point) {
	for axis := 0; axis < 3; axis++ {
		v := p.Coord(axis)
		if v < b.Min[axis] {
			b.Min[axis] = v
		}
		if v > b.Max[axis] {
			b.Max[axis] = v
		}
	}
}

// Merge grows b to contain o.
func (b *Bounds) Merge(o Bounds) {
	for axis := 0; axis < 3; axis++ {
		if o.Min[axis] < b.Min[axis] {
			b.Min[axis] = o.Min[axis]
		}
		if o.Max[axis] > b.Max[axis] {
			b.Max[axis] = o.Max[axis]
		}
	}
}

// Extent is Max-Min on axis.
func (b Bounds) Extent(axis int) float32 {
	return b.Max[axis] - b.Min[axis]
}

// ComputeBounds returns the box of points sequentially. It returns false for
// an empty slice.
func ComputeBounds(points []Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b := BoundsOf(points[0])
	for _, p := range points[1:] {
		b.Extend(p)
	}
	return b, true
}

// Cloud is the owned result of reading a PLY file.
type Cloud struct {
	Header      Header
	Points      []Point
	Bounds      Bounds
	Fingerprint uint64 // xxhash64 of the decompressed input bytes
}
