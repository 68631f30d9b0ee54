// Package palette holds the fixed catalog of block colors that voxels are
// matched against, and the nearest-color search over it.
package palette

import (
	"errors"
	"fmt"

	"github.com/banshee-data/cloudblocks/internal/colorspace"
)

// ErrEmptyPalette is returned when a palette would have no entries.
var ErrEmptyPalette = errors.New("palette: no entries")

// Entry is the source description of one palette block.
type Entry struct {
	Name    string
	R, G, B uint8
}

// BlockColorInfo is a palette block with its precomputed L*a*b* color.
type BlockColorInfo struct {
	Name string
	RGB  colorspace.RGB
	Lab  colorspace.Lab
}

// Palette is an immutable, ordered set of blocks. Order matters: when two
// blocks are equally close to a target color the earlier one wins.
// A Palette is safe for concurrent use.
type Palette struct {
	blocks []BlockColorInfo
	byName map[string]int
}

// New builds a palette from entries, precomputing L*a*b* for each block.
func New(entries []Entry) (*Palette, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyPalette
	}
	p := &Palette{
		blocks: make([]BlockColorInfo, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("palette: entry %d has no block name", i)
		}
		if _, dup := p.byName[e.Name]; dup {
			return nil, fmt.Errorf("palette: duplicate block %q", e.Name)
		}
		p.blocks[i] = BlockColorInfo{
			Name: e.Name,
			RGB:  colorspace.RGB{R: e.R, G: e.G, B: e.B},
			Lab:  colorspace.SRGBToLab(e.R, e.G, e.B),
		}
		p.byName[e.Name] = i
	}
	return p, nil
}

// MustNew is like New but panics on error. Intended for static catalogs.
func MustNew(entries []Entry) *Palette {
	p, err := New(entries)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of blocks.
func (p *Palette) Len() int { return len(p.blocks) }

// At returns the i-th block in palette order.
func (p *Palette) At(i int) BlockColorInfo { return p.blocks[i] }

// Blocks returns a copy of the blocks in palette order.
func (p *Palette) Blocks() []BlockColorInfo {
	return append([]BlockColorInfo(nil), p.blocks...)
}

// Lookup returns the block with the given name.
func (p *Palette) Lookup(name string) (BlockColorInfo, bool) {
	i, ok := p.byName[name]
	if !ok {
		return BlockColorInfo{}, false
	}
	return p.blocks[i], true
}
