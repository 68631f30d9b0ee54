package ply

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
)

// minChunk keeps tiny clouds on a single goroutine.
const minChunk = 4096

// Colorize fills in Lab for every point and returns the bounding box. Points
// are split into contiguous chunks converted in parallel; each chunk keeps a
// local box and the boxes are merged afterwards, so the result matches a
// sequential pass.
func Colorize(ctx context.Context, points []Point, workers int) (Bounds, error) {
	if len(points) == 0 {
		return Bounds{}, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (len(points) + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}
	nChunks := (len(points) + chunk - 1) / chunk
	partial := make([]Bounds, nChunks)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < nChunks; i++ {
		i := i
		lo := i * chunk
		hi := min(lo+chunk, len(points))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part := points[lo:hi]
			b := BoundsOf(part[0])
			for j := range part {
				c := part[j].Color
				part[j].Lab = colorspace.SRGBToLab(c.R, c.G, c.B)
				b.Extend(part[j])
			}
			partial[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Bounds{}, err
	}

	total := partial[0]
	for _, b := range partial[1:] {
		total.Merge(b)
	}
	return total, nil
}
