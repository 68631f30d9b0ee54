package ply

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrFileNotFound is returned when the input path does not exist.
	ErrFileNotFound = errors.New("ply: file not found")
	// ErrUnsupportedFormat covers big-endian bodies, unknown property types and
	// vertex layouts without a contiguous x,y,z,r,g,b block.
	ErrUnsupportedFormat = errors.New("ply: unsupported format")
	// ErrMissingVertexCount is returned when no positive "element vertex N" line exists.
	ErrMissingVertexCount = errors.New("ply: missing vertex count")
	// ErrTruncated is returned when the body ends before N vertices were read.
	ErrTruncated = fmt.Errorf("ply: truncated input: %w", io.ErrUnexpectedEOF)
	// ErrNonFiniteCoordinate is returned for a vertex with a NaN or infinite position.
	ErrNonFiniteCoordinate = errors.New("ply: non-finite coordinate")
)
