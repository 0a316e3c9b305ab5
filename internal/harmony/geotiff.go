package harmony

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aeris-platform/aeris/internal/raster"
)

// decodeGeoTIFF reads a baseline, uncompressed, single-band GeoTIFF into a
// *raster.Grid. No retrieved example repo carries a full GeoTIFF codec (see
// DESIGN.md, same gap as internal/raster), so this parses only the subset of
// the TIFF/GeoTIFF tag set the provider's rangeset export actually emits:
// little-endian byte order, uncompressed strips, one sample per pixel
// (float32, float64, or 16/32-bit integer), and the two GeoTIFF georeferencing
// tags needed to place the raster in WGS84. Anything else (compression,
// tiling, big-endian, multi-band) is rejected with an error rather than
// silently misread.
func decodeGeoTIFF(data []byte) (*raster.Grid, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("harmony: file too small to be a TIFF")
	}
	if data[0] != 'I' || data[1] != 'I' {
		return nil, fmt.Errorf("harmony: only little-endian TIFF is supported")
	}
	if binary.LittleEndian.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("harmony: bad TIFF magic number")
	}
	ifdOffset := binary.LittleEndian.Uint32(data[4:8])

	tags, err := readIFD(data, ifdOffset)
	if err != nil {
		return nil, err
	}

	width, ok := tags.uint(256)
	if !ok {
		return nil, fmt.Errorf("harmony: missing ImageWidth tag")
	}
	height, ok := tags.uint(257)
	if !ok {
		return nil, fmt.Errorf("harmony: missing ImageLength tag")
	}
	if compression, ok := tags.uint(259); ok && compression != 1 {
		return nil, fmt.Errorf("harmony: compressed TIFF not supported (compression=%d)", compression)
	}
	if spp, ok := tags.uint(277); ok && spp != 1 {
		return nil, fmt.Errorf("harmony: multi-band TIFF not supported (samples per pixel=%d)", spp)
	}
	bitsPerSample, _ := tags.uint(258)
	if bitsPerSample == 0 {
		bitsPerSample = 32
	}
	sampleFormat, _ := tags.uint(339)
	if sampleFormat == 0 {
		sampleFormat = 1 // unsigned integer
	}
	if bitsPerSample != 16 && bitsPerSample != 32 && !(bitsPerSample == 64 && sampleFormat == 3) {
		return nil, fmt.Errorf("harmony: unsupported sample layout (bits=%d, format=%d)", bitsPerSample, sampleFormat)
	}

	pixels, err := readStrips(data, tags, int(width), int(height), int(bitsPerSample), int(sampleFormat))
	if err != nil {
		return nil, err
	}

	west, south, east, north, err := geoBounds(tags, int(width), int(height))
	if err != nil {
		return nil, err
	}

	g := raster.NewGrid(west, south, east, north, int(width), int(height))
	copy(g.Data, pixels)
	return g, nil
}

type tiffTags map[uint16]tiffEntry

type tiffEntry struct {
	typ   uint16
	count uint32
	raw   []byte // either the inline 4-byte value area, or the full out-of-line data
}

func readIFD(data []byte, offset uint32) (tiffTags, error) {
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("harmony: IFD offset out of range")
	}
	count := binary.LittleEndian.Uint16(data[offset : offset+2])
	tags := make(tiffTags, count)

	base := offset + 2
	for i := 0; i < int(count); i++ {
		entryOff := base + uint32(i*12)
		if int(entryOff)+12 > len(data) {
			return nil, fmt.Errorf("harmony: IFD entry out of range")
		}
		tag := binary.LittleEndian.Uint16(data[entryOff : entryOff+2])
		typ := binary.LittleEndian.Uint16(data[entryOff+2 : entryOff+4])
		cnt := binary.LittleEndian.Uint32(data[entryOff+4 : entryOff+8])
		valueArea := data[entryOff+8 : entryOff+12]

		size := typeSize(typ) * int(cnt)
		var raw []byte
		if size <= 4 {
			raw = valueArea
		} else {
			off := binary.LittleEndian.Uint32(valueArea)
			if int(off)+size > len(data) {
				return nil, fmt.Errorf("harmony: tag %d data out of range", tag)
			}
			raw = data[off : int(off)+size]
		}
		tags[tag] = tiffEntry{typ: typ, count: cnt, raw: raw}
	}
	return tags, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case 1, 2: // BYTE, ASCII
		return 1
	case 3: // SHORT
		return 2
	case 4: // LONG
		return 4
	case 5: // RATIONAL
		return 8
	case 11: // FLOAT
		return 4
	case 12: // DOUBLE
		return 8
	default:
		return 4
	}
}

// uint returns a tag's first value widened to uint64, for SHORT/LONG tags.
func (t tiffTags) uint(tag uint16) (uint64, bool) {
	e, ok := t[tag]
	if !ok {
		return 0, false
	}
	switch e.typ {
	case 3:
		return uint64(binary.LittleEndian.Uint16(e.raw[:2])), true
	case 4:
		return uint64(binary.LittleEndian.Uint32(e.raw[:4])), true
	default:
		return 0, false
	}
}

// doubles returns every value of a DOUBLE-typed tag.
func (t tiffTags) doubles(tag uint16) ([]float64, bool) {
	e, ok := t[tag]
	if !ok || e.typ != 12 {
		return nil, false
	}
	out := make([]float64, e.count)
	for i := range out {
		bits := binary.LittleEndian.Uint64(e.raw[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out, true
}

// uints returns every value of a SHORT/LONG tag widened to uint64 (used for
// the strip offsets and byte counts).
func (t tiffTags) uints(tag uint16) ([]uint64, bool) {
	e, ok := t[tag]
	if !ok {
		return nil, false
	}
	n := int(e.count)
	out := make([]uint64, n)
	switch e.typ {
	case 3:
		for i := 0; i < n; i++ {
			out[i] = uint64(binary.LittleEndian.Uint16(e.raw[i*2 : i*2+2]))
		}
	case 4:
		for i := 0; i < n; i++ {
			out[i] = uint64(binary.LittleEndian.Uint32(e.raw[i*4 : i*4+4]))
		}
	default:
		return nil, false
	}
	return out, true
}

func readStrips(data []byte, tags tiffTags, width, height, bitsPerSample, sampleFormat int) ([]float32, error) {
	offsets, ok := tags.uints(273)
	if !ok {
		return nil, fmt.Errorf("harmony: missing StripOffsets tag")
	}
	counts, ok := tags.uints(279)
	if !ok {
		return nil, fmt.Errorf("harmony: missing StripByteCounts tag")
	}
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("harmony: StripOffsets/StripByteCounts length mismatch")
	}

	out := make([]float32, width*height)
	bytesPerSample := bitsPerSample / 8
	pos := 0
	for i := range offsets {
		strip := data[offsets[i] : offsets[i]+counts[i]]
		n := len(strip) / bytesPerSample
		for j := 0; j < n && pos < len(out); j, pos = j+1, pos+1 {
			raw := strip[j*bytesPerSample : (j+1)*bytesPerSample]
			out[pos] = decodeSample(raw, bitsPerSample, sampleFormat)
		}
	}
	return out, nil
}

func decodeSample(raw []byte, bits, format int) float32 {
	switch {
	case bits == 32 && format == 3: // IEEE float32
		return math.Float32frombits(binary.LittleEndian.Uint32(raw))
	case bits == 64 && format == 3: // IEEE float64
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(raw)))
	case bits == 32 && format == 2: // signed int32
		return float32(int32(binary.LittleEndian.Uint32(raw)))
	case bits == 16 && format == 2: // signed int16
		return float32(int16(binary.LittleEndian.Uint16(raw)))
	case bits == 16: // unsigned int16
		return float32(binary.LittleEndian.Uint16(raw))
	default: // unsigned int32 fallback
		return float32(binary.LittleEndian.Uint32(raw))
	}
}

// geoBounds derives the raster's WGS84 bounding box from the ModelPixelScale
// (33550) and ModelTiepoint (33922) GeoTIFF tags, assuming tiepoint (0,0) at
// the raster's upper-left corner — the shape the provider's export uses.
func geoBounds(tags tiffTags, width, height int) (west, south, east, north float64, err error) {
	scale, ok := tags.doubles(33550)
	if !ok || len(scale) < 2 {
		return 0, 0, 0, 0, fmt.Errorf("harmony: missing ModelPixelScaleTag")
	}
	tie, ok := tags.doubles(33922)
	if !ok || len(tie) < 6 {
		return 0, 0, 0, 0, fmt.Errorf("harmony: missing ModelTiepointTag")
	}
	originLon, originLat := tie[3], tie[4]
	west = originLon
	north = originLat
	east = west + scale[0]*float64(width)
	south = north - scale[1]*float64(height)
	return west, south, east, north, nil
}
