package voxel

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/ply"
	"github.com/banshee-data/cloudblocks/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func bounds(t *testing.T, pts []ply.Point) ply.Bounds {
	t.Helper()
	b, ok := ply.ComputeBounds(pts)
	require.True(t, ok)
	return b
}

func TestDimension(t *testing.T) {
	t.Parallel()

	cases := []struct {
		extent, cell float32
		want         int
	}{
		{10, 5, 2},
		{10.5, 5, 3},
		{4.9, 5, 1},
		{0, 5, 1},
		{1, 0.25, 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Dimension(tc.extent, tc.cell), "extent=%v cell=%v", tc.extent, tc.cell)
	}
}

func TestCellIndex_ClampsMaxFace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, CellIndex(0, 0, 5, 2))
	assert.Equal(t, 0, CellIndex(4.99, 0, 5, 2))
	assert.Equal(t, 1, CellIndex(5, 0, 5, 2))
	assert.Equal(t, 1, CellIndex(10, 0, 5, 2), "point on max face lands in last cell")
	assert.Equal(t, 0, CellIndex(-1, 0, 5, 2))
	assert.Equal(t, 0, CellIndex(float32(math.NaN()), 0, 5, 2))
}

func TestPartition_BoundaryPoint(t *testing.T) {
	t.Parallel()

	pts := []ply.Point{
		testutil.Point(0, 0, 0, 0, 0, 0),
		testutil.Point(10, 10, 10, 255, 255, 255),
		testutil.Point(5, 2, 9, 1, 1, 1),
	}
	g, err := Partition(pts, bounds(t, pts), 5, 1)
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 2, 2}, g.Dims())
	assert.Equal(t, 8, g.Len())
	assert.Equal(t, 3, g.Points())
	assert.Equal(t, float32(5), g.CellSize())
	assert.Equal(t, [3]float32{0, 0, 0}, g.Origin())

	assert.Equal(t, []ply.Point{pts[0]}, g.Cell(0, 0, 0))
	assert.Equal(t, []ply.Point{pts[1]}, g.Cell(1, 1, 1))
	assert.Equal(t, []ply.Point{pts[2]}, g.Cell(1, 0, 1))
	assert.Equal(t, 3, g.Occupied(1))
	assert.Nil(t, g.Cell(2, 0, 0))
	assert.Nil(t, g.Cell(-1, 0, 0))
}

func TestPartition_ZeroExtentAxis(t *testing.T) {
	t.Parallel()

	pts := []ply.Point{
		testutil.Point(0, 7, 0, 0, 0, 0),
		testutil.Point(12, 7, 3, 0, 0, 0),
	}
	g, err := Partition(pts, bounds(t, pts), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 1, 1}, g.Dims())
	assert.Equal(t, 1, g.Count(0, 0, 0))
	assert.Equal(t, 1, g.Count(2, 0, 0))

	single := []ply.Point{testutil.Point(1, 2, 3, 0, 0, 0)}
	g, err = Partition(single, bounds(t, single), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 1, 1}, g.Dims())
	assert.Equal(t, 1, g.Count(0, 0, 0))
}

func TestPartition_InvalidCellSize(t *testing.T) {
	t.Parallel()

	pts := []ply.Point{testutil.Point(0, 0, 0, 0, 0, 0)}
	b := bounds(t, pts)
	for _, cs := range []float32{0, -1, float32(math.Inf(1)), float32(math.NaN())} {
		g, err := Partition(pts, b, cs, 1)
		assert.Nil(t, g)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "cell size %v", cs)
	}
}

func TestPartition_TooLarge(t *testing.T) {
	t.Parallel()

	pts := []ply.Point{testutil.Point(0, 0, 0, 0, 0, 0), testutil.Point(1e6, 1e6, 1e6, 0, 0, 0)}
	_, err := Partition(pts, bounds(t, pts), 0.5, 1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestPartition_EveryPointOnceAndOrdered(t *testing.T) {
	t.Parallel()

	pts := ply.Cube(12, 0.7)
	b := bounds(t, pts)

	serial, err := Partition(pts, b, 2, 1)
	require.NoError(t, err)

	total := 0
	for i := 0; i < serial.Len(); i++ {
		total += len(serial.cells[i])
	}
	assert.Equal(t, len(pts), total)

	for _, workers := range []int{2, 5, 16} {
		g, err := Partition(pts, b, 2, workers)
		require.NoError(t, err)
		if diff := cmp.Diff(serial.cells, g.cells); diff != "" {
			t.Fatalf("workers=%d grid differs (-serial +parallel):\n%s", workers, diff)
		}
	}

	// Points within a cell keep input order.
	d := serial.Dims()
	for iz := 0; iz < d[2]; iz++ {
		for iy := 0; iy < d[1]; iy++ {
			for ix := 0; ix < d[0]; ix++ {
				cell := serial.Cell(ix, iy, iz)
				for k := 1; k < len(cell); k++ {
					prev, cur := cell[k-1], cell[k]
					assert.True(t, prev.X < cur.X || (prev.X == cur.X && (prev.Y < cur.Y || (prev.Y == cur.Y && prev.Z < cur.Z))))
				}
			}
		}
	}
}

func TestPartition_Empty(t *testing.T) {
	t.Parallel()

	g, err := Partition(nil, ply.Bounds{}, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 1, 1}, g.Dims())
	assert.Equal(t, 0, g.Occupied(1))
}
