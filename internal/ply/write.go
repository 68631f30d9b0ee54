package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Write emits points as a PLY file with the canonical layout
// x y z red green blue. The axis remap applied by Read is inverted, so
// reading the output back yields the same points.
func Write(w io.Writer, points []Point, enc Encoding) error {
	if enc == BinaryBigEndian {
		return fmt.Errorf("%w: cannot write %s", ErrUnsupportedFormat, enc)
	}
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ply\nformat %s 1.0\ncomment written by cloudblocks\n", enc)
	fmt.Fprintf(bw, "element vertex %d\n", len(points))
	for _, name := range []string{"x", "y", "z"} {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	for _, name := range []string{"red", "green", "blue"} {
		fmt.Fprintf(bw, "property uchar %s\n", name)
	}
	bw.WriteString("end_header\n")

	switch enc {
	case ASCII:
		var line []byte
		for _, p := range points {
			line = line[:0]
			for _, v := range [3]float32{p.X, p.Z, p.Y} {
				line = strconv.AppendFloat(line, float64(v), 'g', -1, 32)
				line = append(line, ' ')
			}
			line = strconv.AppendUint(line, uint64(p.Color.R), 10)
			line = append(line, ' ')
			line = strconv.AppendUint(line, uint64(p.Color.G), 10)
			line = append(line, ' ')
			line = strconv.AppendUint(line, uint64(p.Color.B), 10)
			line = append(line, '\n')
			if _, err := bw.Write(line); err != nil {
				return err
			}
		}
	case BinaryLittleEndian:
		var rec [vertexBlockSize]byte
		le := binary.LittleEndian
		for _, p := range points {
			le.PutUint32(rec[0:4], math.Float32bits(p.X))
			le.PutUint32(rec[4:8], math.Float32bits(p.Z))
			le.PutUint32(rec[8:12], math.Float32bits(p.Y))
			rec[12], rec[13], rec[14] = p.Color.R, p.Color.G, p.Color.B
			if _, err := bw.Write(rec[:]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, enc)
	}
	return bw.Flush()
}
