// Package colorspace converts 8-bit sRGB colors into CIE L*a*b*.
//
// Euclidean distance in L*a*b* tracks perceived color difference far better
// than distance in raw RGB, which is why block matching works in this space.
// All functions are pure and total over finite inputs. Results are float32
// and use the D65 reference white.
package colorspace
