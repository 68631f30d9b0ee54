package placement

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
	"github.com/banshee-data/cloudblocks/internal/palette"
	"github.com/banshee-data/cloudblocks/internal/ply"
	"github.com/banshee-data/cloudblocks/internal/voxel"
)

// Command places one block for one voxel.
type Command struct {
	Seq        int // position in the plan, from 0
	X, Y, Z    int // world coordinates
	Block      string
	PointCount int
	Mean       colorspace.Lab
}

// String renders the console command.
func (c Command) String() string {
	return fmt.Sprintf("setblock %d %d %d %s", c.X, c.Y, c.Z, c.Block)
}

// WorldCoord maps a grid index to a world coordinate. The sum is formed in
// float32 and truncated toward zero.
func WorldCoord(index int, origin float32) int {
	return int(float32(index) + origin)
}

// MeanLab is the arithmetic mean of the points' Lab colors.
func MeanLab(points []ply.Point) colorspace.Lab {
	if len(points) == 0 {
		return colorspace.Lab{}
	}
	l := make([]float64, len(points))
	a := make([]float64, len(points))
	b := make([]float64, len(points))
	for i, p := range points {
		l[i] = float64(p.Lab.L)
		a[i] = float64(p.Lab.A)
		b[i] = float64(p.Lab.B)
	}
	return colorspace.Lab{
		L: float32(stat.Mean(l, nil)),
		A: float32(stat.Mean(a, nil)),
		B: float32(stat.Mean(b, nil)),
	}
}

// MeanRGB is the arithmetic mean of the points' raw colors.
func MeanRGB(points []ply.Point) (r, g, b float32) {
	if len(points) == 0 {
		return 0, 0, 0
	}
	var sr, sg, sb float64
	for _, p := range points {
		sr += float64(p.Color.R)
		sg += float64(p.Color.G)
		sb += float64(p.Color.B)
	}
	n := float64(len(points))
	return float32(sr / n), float32(sg / n), float32(sb / n)
}

// Planner turns a voxel grid into an ordered list of commands.
type Planner struct {
	Palette    *palette.Palette
	Threshold  int // a voxel needs more than this many points
	Origin     [3]float32
	MatchSpace palette.MatchSpace
}

// Plan walks the grid x outer, y middle, z inner and emits one command per
// voxel whose point count exceeds the threshold. The second return value
// counts occupied voxels left out by the threshold.
func (p Planner) Plan(grid *voxel.Grid) ([]Command, int) {
	var (
		cmds    []Command
		skipped int
	)
	d := grid.Dims()
	for ix := 0; ix < d[0]; ix++ {
		for iy := 0; iy < d[1]; iy++ {
			for iz := 0; iz < d[2]; iz++ {
				cell := grid.Cell(ix, iy, iz)
				if len(cell) == 0 {
					continue
				}
				if len(cell) <= p.Threshold {
					skipped++
					continue
				}
				mean := MeanLab(cell)
				cmds = append(cmds, Command{
					Seq:        len(cmds),
					X:          WorldCoord(ix, p.Origin[0]),
					Y:          WorldCoord(iy, p.Origin[1]),
					Z:          WorldCoord(iz, p.Origin[2]),
					Block:      p.match(cell, mean).Name,
					PointCount: len(cell),
					Mean:       mean,
				})
			}
		}
	}
	return cmds, skipped
}

func (p Planner) match(cell []ply.Point, mean colorspace.Lab) palette.BlockColorInfo {
	if p.MatchSpace == palette.MatchRGB {
		return p.Palette.MatchRGB(MeanRGB(cell))
	}
	return p.Palette.Match(mean)
}
