// Package voxel buckets points into a uniform 3D grid.
//
// The grid origin is the minimum corner of the cloud's bounding box and every
// axis has ceil(extent/cellSize) cells. An axis whose points all share one
// coordinate still gets a single cell, and a point lying exactly on the
// maximum face is clamped into the last cell, so every point belongs to
// exactly one cell.
package voxel

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/ply"
)

// ErrInvalidConfiguration is returned for a cell size that is not a positive
// finite number, or a grid too large to allocate.
var ErrInvalidConfiguration = errors.New("voxel: invalid configuration")

// MaxCells caps the number of cells a grid may allocate.
const MaxCells = 1 << 28

// Grid holds the points of each cell in a flat slice indexed by
// ix + dims[0]*(iy + dims[1]*iz).
type Grid struct {
	dims     [3]int
	cellSize float32
	origin   [3]float32
	cells    [][]ply.Point
	points   int
}

// Dims returns the number of cells along x, y and z.
func (g *Grid) Dims() [3]int { return g.dims }

// Len returns the total number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// CellSize returns the edge length of one cell.
func (g *Grid) CellSize() float32 { return g.cellSize }

// Origin returns the minimum corner of the grid in cloud coordinates.
func (g *Grid) Origin() [3]float32 { return g.origin }

// Points returns the number of points held by the grid.
func (g *Grid) Points() int { return g.points }

// Index flattens a cell address.
func (g *Grid) Index(ix, iy, iz int) int {
	return ix + g.dims[0]*(iy+g.dims[1]*iz)
}

// Cell returns the points of one cell in input order. Out-of-range
// addresses return nil.
func (g *Grid) Cell(ix, iy, iz int) []ply.Point {
	if ix < 0 || iy < 0 || iz < 0 || ix >= g.dims[0] || iy >= g.dims[1] || iz >= g.dims[2] {
		return nil
	}
	return g.cells[g.Index(ix, iy, iz)]
}

// Count returns the number of points in one cell.
func (g *Grid) Count(ix, iy, iz int) int {
	return len(g.Cell(ix, iy, iz))
}

// Occupied returns the number of cells holding at least minCount points.
func (g *Grid) Occupied(minCount int) int {
	n := 0
	for _, c := range g.cells {
		if len(c) > 0 && len(c) >= minCount {
			n++
		}
	}
	return n
}

// Dimension returns the number of cells spanning extent.
func Dimension(extent, cellSize float32) int {
	q := math.Ceil(float64(extent / cellSize))
	switch {
	case math.IsNaN(q) || q < 1:
		return 1
	case q > MaxCells:
		return MaxCells + 1
	}
	return int(q)
}

// CellIndex maps a coordinate to its cell along one axis, clamped to [0, dim-1].
func CellIndex(c, lo, cellSize float32, dim int) int {
	f := math.Floor(float64((c - lo) / cellSize))
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f >= float64(dim):
		return dim - 1
	}
	return int(f)
}

func validCellSize(cellSize float32) bool {
	f := float64(cellSize)
	return cellSize > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Partition assigns every point to its cell. Cell addresses are computed
// for contiguous chunks in parallel, then a sequential merge appends points
// in input order so each cell's contents are deterministic.
func Partition(points []ply.Point, bounds ply.Bounds, cellSize float32, workers int) (*Grid, error) {
	if !validCellSize(cellSize) {
		return nil, fmt.Errorf("%w: cell size %v must be positive", ErrInvalidConfiguration, cellSize)
	}

	g := &Grid{cellSize: cellSize, origin: bounds.Min, points: len(points)}
	total := 1
	for axis := 0; axis < 3; axis++ {
		g.dims[axis] = Dimension(bounds.Extent(axis), cellSize)
		total *= g.dims[axis]
		if total > MaxCells {
			return nil, fmt.Errorf("%w: grid %v exceeds %d cells at cell size %v",
				ErrInvalidConfiguration, g.dims, MaxCells, cellSize)
		}
	}
	g.cells = make([][]ply.Point, total)

	addr, err := addresses(points, g, workers)
	if err != nil {
		return nil, err
	}

	counts := make([]int, total)
	for _, a := range addr {
		counts[a]++
	}
	for i, n := range counts {
		if n > 0 {
			g.cells[i] = make([]ply.Point, 0, n)
		}
	}
	for i, a := range addr {
		g.cells[a] = append(g.cells[a], points[i])
	}

	monitoring.Logf("voxel: %d points into %dx%dx%d grid (cell %.3g), %d cells occupied",
		len(points), g.dims[0], g.dims[1], g.dims[2], cellSize, g.Occupied(1))
	return g, nil
}

func addresses(points []ply.Point, g *Grid, workers int) ([]int, error) {
	addr := make([]int, len(points))
	if len(points) == 0 {
		return addr, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (len(points) + workers - 1) / workers

	var eg errgroup.Group
	for lo := 0; lo < len(points); lo += chunk {
		lo := lo
		hi := min(lo+chunk, len(points))
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				p := points[i]
				addr[i] = g.Index(
					CellIndex(p.X, g.origin[0], g.cellSize, g.dims[0]),
					CellIndex(p.Y, g.origin[1], g.cellSize, g.dims[1]),
					CellIndex(p.Z, g.origin[2], g.cellSize, g.dims[2]),
				)
			}
			return nil
		})
	}
	return addr, eg.Wait()
}
