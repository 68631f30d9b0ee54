package palette

import (
	"fmt"
	"math"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
)

// MatchSpace selects the color space used for nearest-block search.
type MatchSpace int

const (
	// MatchLab compares colors by squared distance in L*a*b*. Default.
	MatchLab MatchSpace = iota
	// MatchRGB compares colors by squared distance in raw sRGB. Legacy.
	MatchRGB
)

func (m MatchSpace) String() string {
	switch m {
	case MatchLab:
		return "lab"
	case MatchRGB:
		return "rgb"
	default:
		return fmt.Sprintf("MatchSpace(%d)", int(m))
	}
}

// ParseMatchSpace parses "lab" or "rgb". The empty string means lab.
func ParseMatchSpace(s string) (MatchSpace, error) {
	switch s {
	case "", "lab":
		return MatchLab, nil
	case "rgb":
		return MatchRGB, nil
	default:
		return MatchLab, fmt.Errorf("unknown match space %q (want lab or rgb)", s)
	}
}

// Match returns the block nearest to target in L*a*b*. Ties keep the block
// that comes first in palette order.
func (p *Palette) Match(target colorspace.Lab) BlockColorInfo {
	best := 0
	bestDist := float32(math.Inf(1))
	for i := range p.blocks {
		if d := p.blocks[i].Lab.DistanceSquared(target); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return p.blocks[best]
}

// MatchRGB returns the block nearest to the averaged color (r, g, b) in raw
// RGB space. Kept for comparison with older reconstructions; Match gives
// visually better results.
func (p *Palette) MatchRGB(r, g, b float32) BlockColorInfo {
	best := 0
	bestDist := float32(math.Inf(1))
	for i := range p.blocks {
		if d := p.blocks[i].RGB.DistanceSquared(r, g, b); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return p.blocks[best]
}
