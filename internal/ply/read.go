package ply

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
	"github.com/banshee-data/cloudblocks/internal/monitoring"
)

// Options tunes Read and ReadFile.
type Options struct {
	// Workers bounds the goroutines used for color conversion. Zero means
	// GOMAXPROCS.
	Workers int
}

// ReadFile reads a PLY file from disk. Files ending in .gz or .zst are
// decompressed transparently.
func ReadFile(ctx context.Context, path string, opts Options) (*Cloud, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	cloud, err := Read(ctx, r, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	monitoring.Logf("ply: read %d points (%s) from %s, bounds min=%v max=%v",
		len(cloud.Points), cloud.Header.Encoding, path, cloud.Bounds.Min, cloud.Bounds.Max)
	return cloud, nil
}

// Read parses a PLY stream. The returned points carry Lab colors and the
// cloud's bounding box.
func Read(ctx context.Context, r io.Reader, opts Options) (*Cloud, error) {
	hasher := xxhash.New()
	br := bufio.NewReader(io.TeeReader(r, hasher))

	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	var points []Point
	switch h.Encoding {
	case ASCII:
		points, err = readASCII(br, h)
	case BinaryLittleEndian:
		points, err = readBinary(br, h)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, h.Encoding)
	}
	if err != nil {
		return nil, err
	}

	bounds, err := Colorize(ctx, points, opts.Workers)
	if err != nil {
		return nil, err
	}

	// Drain trailing elements so the fingerprint covers the whole input.
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, fmt.Errorf("read trailing data: %w", err)
	}

	return &Cloud{
		Header:      h,
		Points:      points,
		Bounds:      bounds,
		Fingerprint: hasher.Sum64(),
	}, nil
}

// maxPrealloc caps the capacity reserved from the declared vertex count;
// larger clouds grow as records arrive.
const maxPrealloc = 1 << 20

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func readBinary(br *bufio.Reader, h Header) ([]Point, error) {
	points := make([]Point, 0, min(h.VertexCount, maxPrealloc))
	rec := make([]byte, h.Stride())
	le := binary.LittleEndian

	for i := 0; i < h.VertexCount; i++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: vertex %d of %d", ErrTruncated, i, h.VertexCount)
			}
			return nil, fmt.Errorf("read vertex %d: %w", i, err)
		}
		b := rec[h.BytesBeforeX:]
		xs := math.Float32frombits(le.Uint32(b[0:4]))
		ys := math.Float32frombits(le.Uint32(b[4:8]))
		zs := math.Float32frombits(le.Uint32(b[8:12]))
		if !finite(xs) || !finite(ys) || !finite(zs) {
			return nil, fmt.Errorf("%w: vertex %d (%g, %g, %g)", ErrNonFiniteCoordinate, i, xs, ys, zs)
		}
		points = append(points, Point{
			X:     xs,
			Y:     zs,
			Z:     ys,
			Color: colorspace.RGB{R: b[12], G: b[13], B: b[14]},
		})
	}
	return points, nil
}

func readASCII(br *bufio.Reader, h Header) ([]Point, error) {
	points := make([]Point, 0, min(h.VertexCount, maxPrealloc))
	lineNo := h.Lines
	need := h.XIndex + len(channelNames)

	for len(points) < h.VertexCount {
		line, err := br.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: vertex %d of %d", ErrTruncated, len(points), h.VertexCount)
			}
			return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
		lineNo++
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < need {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", lineNo, need, len(fields))
		}

		var xyz [3]float32
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(fields[h.XIndex+k], 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse %s: %w", lineNo, channelNames[k][0], err)
			}
			xyz[k] = float32(v)
			if !finite(xyz[k]) {
				return nil, fmt.Errorf("line %d: %w: %s = %s", lineNo, ErrNonFiniteCoordinate, channelNames[k][0], fields[h.XIndex+k])
			}
		}
		var rgb [3]uint8
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseUint(fields[h.XIndex+3+k], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse %s: %w", lineNo, channelNames[3+k][1], err)
			}
			rgb[k] = uint8(v)
		}
		points = append(points, Point{
			X:     xyz[0],
			Y:     xyz[2],
			Z:     xyz[1],
			Color: colorspace.RGB{R: rgb[0], G: rgb[1], B: rgb[2]},
		})
	}
	return points, nil
}
