// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
	"github.com/banshee-data/cloudblocks/internal/ply"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// WritePLY writes points to dir/name in the given encoding and returns the path.
func WritePLY(t *testing.T, dir, name string, points []ply.Point, enc ply.Encoding) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := ply.Write(f, points, enc); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Point builds a point with its Lab color filled in.
func Point(x, y, z float32, r, g, b uint8) ply.Point {
	c := colorspace.RGB{R: r, G: g, B: b}
	return ply.Point{X: x, Y: y, Z: z, Color: c, Lab: c.Lab()}
}

// Repeat returns n copies of p.
func Repeat(p ply.Point, n int) []ply.Point {
	out := make([]ply.Point, n)
	for i := range out {
		out[i] = p
	}
	return out
}
