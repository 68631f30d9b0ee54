package ply

import "github.com/banshee-data/cloudblocks/internal/colorspace"

// Cube returns side³ points on a regular lattice with the given spacing,
// colored by a gradient over the lattice position. The output is
// deterministic and meant for fixtures and smoke runs.
func Cube(side int, spacing float32) []Point {
	if side <= 0 {
		return nil
	}
	points := make([]Point, 0, side*side*side)
	scale := 255.0 / float32(max(side-1, 1))
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			for k := 0; k < side; k++ {
				c := colorspace.RGB{
					R: uint8(float32(i) * scale),
					G: uint8(float32(j) * scale),
					B: uint8(float32(k) * scale),
				}
				points = append(points, Point{
					X:     float32(i) * spacing,
					Y:     float32(j) * spacing,
					Z:     float32(k) * spacing,
					Color: c,
					Lab:   c.Lab(),
				})
			}
		}
	}
	return points
}
