// Package ply reads colored point clouds stored in the PLY format.
//
// Only the vertex element is consumed, and it must carry the contiguous
// property block x, y, z (float) followed by red, green, blue (uchar).
// Properties before x and after blue are skipped. ASCII and little-endian
// binary bodies are supported; big-endian files are rejected.
//
// Source axes are remapped on read so that the world's vertical axis is Y:
//
//	x = x_src, y = z_src, z = y_src
//
// Every point receives its CIE L*a*b* color on ingest and the reader
// returns the bounding box of the whole cloud alongside the points.
package ply
