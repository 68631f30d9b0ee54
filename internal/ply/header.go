package ply

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Encoding is the body encoding declared by the "format" header line.
type Encoding int

const (
	ASCII Encoding = iota
	BinaryLittleEndian
	BinaryBigEndian
)

func (e Encoding) String() string {
	switch e {
	case ASCII:
		return "ascii"
	case BinaryLittleEndian:
		return "binary_little_endian"
	case BinaryBigEndian:
		return "binary_big_endian"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding accepts the format names used in PLY headers plus the short
// forms "binary" and "le".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "ascii":
		return ASCII, nil
	case "binary_little_endian", "binary", "le":
		return BinaryLittleEndian, nil
	case "binary_big_endian", "be":
		return BinaryBigEndian, nil
	}
	return 0, fmt.Errorf("%w: unknown encoding %q", ErrUnsupportedFormat, s)
}

// Property is one "property <type> <name>" line of the vertex element.
type Property struct {
	Type string
	Name string
	Size int // bytes in the binary encoding
}

// Header describes the vertex layout of a PLY file.
type Header struct {
	Encoding    Encoding
	VertexCount int
	Properties  []Property
	Comments    []string

	XIndex         int // index of x within Properties
	BytesBeforeX   int // binary bytes of properties declared before x
	BytesAfterBlue int // binary bytes of properties declared after blue
	Lines          int // header lines including end_header
}

// Stride is the binary size of one vertex record.
func (h Header) Stride() int {
	return h.BytesBeforeX + vertexBlockSize + h.BytesAfterBlue
}

// x,y,z float32 plus r,g,b uint8
const vertexBlockSize = 3*4 + 3

// typeSizes maps PLY scalar type names to their binary width.
var typeSizes = map[string]int{
	"char":    1,
	"uchar":   1,
	"int8":    1,
	"uint8":   1,
	"short":   2,
	"ushort":  2,
	"int16":   2,
	"uint16":  2,
	"int":     4,
	"uint":    4,
	"int32":   4,
	"uint32":  4,
	"float":   4,
	"float32": 4,
	"double":  8,
	"float64": 8,
}

func isFloat32Type(t string) bool { return t == "float" || t == "float32" }
func isUint8Type(t string) bool   { return t == "uchar" || t == "uint8" }

// channelNames lists the accepted names for each of the six block properties.
var channelNames = [6][]string{
	{"x"},
	{"y"},
	{"z"},
	{"r", "red"},
	{"g", "green"},
	{"b", "blue"},
}

// readHeader consumes header lines from br up to and including end_header.
func readHeader(br *bufio.Reader) (Header, error) {
	var (
		h            Header
		sawFormat    bool
		sawVertex    bool
		inVertex     bool
		sawElement   bool
		vertexCountS string
	)
	h.XIndex = -1

	for {
		line, err := br.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				return Header{}, fmt.Errorf("%w: header ends before end_header", ErrTruncated)
			}
			return Header{}, fmt.Errorf("read header: %w", err)
		}
		h.Lines++
		line = strings.TrimRight(line, "\r\n")
		fields := strings.Fields(line)

		if h.Lines == 1 {
			if line != "ply" {
				return Header{}, fmt.Errorf("%w: missing ply magic line", ErrUnsupportedFormat)
			}
			continue
		}
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return Header{}, fmt.Errorf("%w: malformed format line %q", ErrUnsupportedFormat, line)
			}
			enc, err := ParseEncoding(fields[1])
			if err != nil {
				return Header{}, err
			}
			if enc == BinaryBigEndian {
				return Header{}, fmt.Errorf("%w: big endian body", ErrUnsupportedFormat)
			}
			h.Encoding = enc
			sawFormat = true
		case "comment", "obj_info":
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "element":
			if len(fields) < 3 {
				if len(fields) == 2 && fields[1] == "vertex" {
					return Header{}, fmt.Errorf("%w: element vertex has no count", ErrMissingVertexCount)
				}
				return Header{}, fmt.Errorf("%w: malformed element line %q", ErrUnsupportedFormat, line)
			}
			if fields[1] == "vertex" {
				if sawElement {
					return Header{}, fmt.Errorf("%w: vertex must be the first element", ErrUnsupportedFormat)
				}
				sawVertex = true
				inVertex = true
				vertexCountS = fields[2]
			} else {
				inVertex = false
			}
			sawElement = true
		case "property":
			if !inVertex {
				if !sawElement {
					return Header{}, fmt.Errorf("%w: property before any element", ErrUnsupportedFormat)
				}
				continue
			}
			if len(fields) < 3 {
				return Header{}, fmt.Errorf("%w: malformed property line %q", ErrUnsupportedFormat, line)
			}
			if fields[1] == "list" {
				return Header{}, fmt.Errorf("%w: list property %q on vertex", ErrUnsupportedFormat, fields[len(fields)-1])
			}
			size, ok := typeSizes[fields[1]]
			if !ok {
				return Header{}, fmt.Errorf("%w: unknown property type %q", ErrUnsupportedFormat, fields[1])
			}
			h.Properties = append(h.Properties, Property{Type: fields[1], Name: fields[2], Size: size})
		case "end_header":
			if !sawFormat {
				return Header{}, fmt.Errorf("%w: missing format line", ErrUnsupportedFormat)
			}
			if !sawVertex {
				return Header{}, ErrMissingVertexCount
			}
			n, err := strconv.Atoi(vertexCountS)
			if err != nil || n <= 0 {
				return Header{}, fmt.Errorf("%w: element vertex %q", ErrMissingVertexCount, vertexCountS)
			}
			h.VertexCount = n
			if err := h.resolveLayout(); err != nil {
				return Header{}, err
			}
			return h, nil
		default:
			return Header{}, fmt.Errorf("%w: unexpected header line %q", ErrUnsupportedFormat, line)
		}
	}
}

// resolveLayout locates the x..blue block and the byte widths around it.
func (h *Header) resolveLayout() error {
	for i, p := range h.Properties {
		if p.Name == "x" {
			h.XIndex = i
			break
		}
	}
	if h.XIndex < 0 {
		return fmt.Errorf("%w: vertex has no x property", ErrUnsupportedFormat)
	}
	if h.XIndex+len(channelNames) > len(h.Properties) {
		return fmt.Errorf("%w: vertex needs x,y,z,red,green,blue in order", ErrUnsupportedFormat)
	}

	for k, names := range channelNames {
		p := h.Properties[h.XIndex+k]
		if !nameIn(p.Name, names) {
			return fmt.Errorf("%w: expected %s at property %d, got %q", ErrUnsupportedFormat, names[len(names)-1], h.XIndex+k, p.Name)
		}
		if k < 3 && !isFloat32Type(p.Type) {
			return fmt.Errorf("%w: position %s must be float, got %s", ErrUnsupportedFormat, p.Name, p.Type)
		}
		if k >= 3 && !isUint8Type(p.Type) {
			return fmt.Errorf("%w: color %s must be uchar, got %s", ErrUnsupportedFormat, p.Name, p.Type)
		}
	}

	h.BytesBeforeX, h.BytesAfterBlue = 0, 0
	for i, p := range h.Properties {
		switch {
		case i < h.XIndex:
			h.BytesBeforeX += p.Size
		case i >= h.XIndex+len(channelNames):
			h.BytesAfterBlue += p.Size
		}
	}
	return nil
}

func nameIn(name string, names []string) bool {
	for _, n := range names {
		if name == n {
			return true
		}
	}
	return false
}
