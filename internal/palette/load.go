package palette

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileEntry is the on-disk form of a palette block. Either hex or all of
// r, g and b must be given.
type fileEntry struct {
	Name string `json:"name" yaml:"name"`
	Hex  string `json:"hex,omitempty" yaml:"hex,omitempty"`
	R    *int   `json:"r,omitempty" yaml:"r,omitempty"`
	G    *int   `json:"g,omitempty" yaml:"g,omitempty"`
	B    *int   `json:"b,omitempty" yaml:"b,omitempty"`
}

type paletteFile struct {
	Blocks []fileEntry `json:"blocks" yaml:"blocks"`
}

// Load reads a palette from a .json, .yaml or .yml file of the form
//
//	blocks:
//	  - {name: "minecraft:white_wool", hex: "#E9ECEC"}
//	  - {name: "minecraft:red_wool", r: 161, g: 39, b: 34}
func Load(path string) (*Palette, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read palette file: %w", err)
	}

	var pf paletteFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &pf)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pf)
	default:
		return nil, fmt.Errorf("palette file must be .json, .yaml or .yml, got %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse palette file: %w", err)
	}

	entries := make([]Entry, 0, len(pf.Blocks))
	for i, fe := range pf.Blocks {
		e, err := fe.entry()
		if err != nil {
			return nil, fmt.Errorf("palette block %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return New(entries)
}

func (fe fileEntry) entry() (Entry, error) {
	e := Entry{Name: fe.Name}
	if fe.Hex != "" {
		r, g, b, err := ParseHexColor(fe.Hex)
		if err != nil {
			return Entry{}, err
		}
		e.R, e.G, e.B = r, g, b
		return e, nil
	}
	if fe.R == nil || fe.G == nil || fe.B == nil {
		return Entry{}, fmt.Errorf("block %q needs hex or r, g and b", fe.Name)
	}
	for _, v := range []int{*fe.R, *fe.G, *fe.B} {
		if v < 0 || v > 255 {
			return Entry{}, fmt.Errorf("block %q channel %d out of range", fe.Name, v)
		}
	}
	e.R, e.G, e.B = uint8(*fe.R), uint8(*fe.G), uint8(*fe.B)
	return e, nil
}

// ParseHexColor parses "#RRGGBB" (the leading '#' is optional).
func ParseHexColor(hex string) (r, g, b uint8, err error) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
}
