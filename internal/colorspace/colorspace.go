package colorspace

import "math"

// sRGB companding constants.
const (
	srgbLinearThreshold = 0.04045
	srgbLinearSlope     = 12.92
	srgbOffset          = 0.055
	srgbScale           = 1.055
	srgbGamma           = 2.4
)

// CIE L*a*b* constants. The reference white is D65.
const (
	labEpsilon = 0.008856
	labKappa   = 7.787
	labOffset  = 16.0 / 116.0

	WhiteX = 0.95047
	WhiteY = 1.0
	WhiteZ = 1.08883
)

// RGB is an 8-bit sRGB color.
type RGB struct {
	R, G, B uint8
}

// Lab is a CIE L*a*b* color.
type Lab struct {
	L, A, B float32
}

// DistanceSquared returns the squared Euclidean distance between two Lab colors.
func (c Lab) DistanceSquared(o Lab) float32 {
	dl := c.L - o.L
	da := c.A - o.A
	db := c.B - o.B
	return dl*dl + da*da + db*db
}

// Normalize maps 0..255 channels onto 0..1.
func Normalize(r, g, b uint8) (float32, float32, float32) {
	return float32(r) / 255, float32(g) / 255, float32(b) / 255
}

// Linearize removes the sRGB transfer curve from a single 0..1 channel.
func Linearize(c float32) float32 {
	if c <= srgbLinearThreshold {
		return c / srgbLinearSlope
	}
	return float32(math.Pow(float64((c+srgbOffset)/srgbScale), srgbGamma))
}

// LinearRGBToXYZ applies the sRGB (D65) to XYZ matrix.
func LinearRGBToXYZ(r, g, b float32) (x, y, z float32) {
	x = 0.4124564*r + 0.3575761*g + 0.1804375*b
	y = 0.2126729*r + 0.7151522*g + 0.0721750*b
	z = 0.0193339*r + 0.1191920*g + 0.9503041*b
	return x, y, z
}

func labF(t float32) float32 {
	if t > labEpsilon {
		return float32(math.Cbrt(float64(t)))
	}
	return labKappa*t + labOffset
}

// XYZToLab converts XYZ (relative to D65 white) into L*a*b*.
func XYZToLab(x, y, z float32) Lab {
	fy := labF(y / WhiteY)
	return Lab{
		L: 116*fy - 16,
		A: 500 * (labF(x/WhiteX) - fy),
		B: 200 * (fy - labF(z/WhiteZ)),
	}
}

// SRGBToLab converts an 8-bit sRGB color into L*a*b*.
func SRGBToLab(r, g, b uint8) Lab {
	nr, ng, nb := Normalize(r, g, b)
	x, y, z := LinearRGBToXYZ(Linearize(nr), Linearize(ng), Linearize(nb))
	return XYZToLab(x, y, z)
}

// Lab returns the L*a*b* representation of c.
func (c RGB) Lab() Lab {
	return SRGBToLab(c.R, c.G, c.B)
}

// DistanceSquared returns the squared Euclidean distance between c and the
// (possibly fractional) RGB triple r, g, b.
func (c RGB) DistanceSquared(r, g, b float32) float32 {
	dr := float32(c.R) - r
	dg := float32(c.G) - g
	db := float32(c.B) - b
	return dr*dr + dg*dg + db*db
}
