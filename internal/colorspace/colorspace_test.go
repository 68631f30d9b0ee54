package colorspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const labTolerance = 0.05

func TestSRGBToLab_WhiteAndBlack(t *testing.T) {
	t.Parallel()

	white := SRGBToLab(255, 255, 255)
	assert.InDelta(t, 100, white.L, 1e-3)
	assert.InDelta(t, 0, white.A, 1e-3)
	assert.InDelta(t, 0, white.B, 1e-3)

	black := SRGBToLab(0, 0, 0)
	assert.InDelta(t, 0, black.L, 1e-4)
	assert.InDelta(t, 0, black.A, 1e-4)
	assert.InDelta(t, 0, black.B, 1e-4)
}

func TestSRGBToLab_Primaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RGB
		want Lab
	}{
		{"red", RGB{255, 0, 0}, Lab{53.24, 80.09, 67.20}},
		{"green", RGB{0, 255, 0}, Lab{87.73, -86.18, 83.18}},
		{"blue", RGB{0, 0, 255}, Lab{32.30, 79.19, -107.86}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.in.Lab()
			assert.InDelta(t, tt.want.L, got.L, labTolerance)
			assert.InDelta(t, tt.want.A, got.A, labTolerance)
			assert.InDelta(t, tt.want.B, got.B, labTolerance)
		})
	}
}

func TestLinearize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, float32(0), Linearize(0))
	assert.InDelta(t, 0.0031308, Linearize(0.04045), 1e-7)
	assert.InDelta(t, 0.214041, Linearize(0.5), 1e-5)
	assert.InDelta(t, 1.0, Linearize(1), 1e-6)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	r, g, b := Normalize(0, 51, 255)
	assert.Equal(t, float32(0), r)
	assert.InDelta(t, 0.2, g, 1e-6)
	assert.Equal(t, float32(1), b)
}

func TestLinearRGBToXYZ_WhitePoint(t *testing.T) {
	t.Parallel()

	x, y, z := LinearRGBToXYZ(1, 1, 1)
	assert.InDelta(t, WhiteX, x, 1e-5)
	assert.InDelta(t, WhiteY, y, 1e-5)
	assert.InDelta(t, WhiteZ, z, 1e-5)
}

func TestXYZToLab_LinearSegment(t *testing.T) {
	t.Parallel()

	// Below the 0.008856 knee the cube root is replaced by 7.787*t + 16/116.
	lab := XYZToLab(0, 0.008, 0)
	wantFy := float32(7.787*0.008 + 16.0/116.0)
	assert.InDelta(t, 116*wantFy-16, lab.L, 1e-4)
}

func TestDistanceSquared(t *testing.T) {
	t.Parallel()

	a := Lab{L: 10, A: 2, B: -3}
	b := Lab{L: 7, A: 6, B: -3}
	assert.Equal(t, float32(25), a.DistanceSquared(b))
	assert.Equal(t, float32(0), a.DistanceSquared(a))

	c := RGB{R: 10, G: 20, B: 30}
	assert.Equal(t, float32(3), c.DistanceSquared(11, 21, 31))
}

func TestSRGBToLab_Deterministic(t *testing.T) {
	t.Parallel()

	for v := 0; v < 256; v += 17 {
		a := SRGBToLab(uint8(v), uint8(255-v), uint8(v/2))
		b := SRGBToLab(uint8(v), uint8(255-v), uint8(v/2))
		assert.Equal(t, a, b)
	}
}
