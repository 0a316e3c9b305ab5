package harmony

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
)

// buildTestTIFF assembles a minimal little-endian, uncompressed, single-strip
// float32 GeoTIFF with exactly the tag set decodeGeoTIFF understands.
func buildTestTIFF(width, height int, pixels []float32, originLon, originLat, pixelScaleLon, pixelScaleLat float64) []byte {
	type entry struct {
		tag, typ uint16
		count    uint32
		value    uint32 // either the inline value or an offset, filled below
		extra    []byte // non-nil if this tag's data lives out-of-line
	}

	entries := []entry{
		{tag: 256, typ: 4, count: 1, value: uint32(width)},
		{tag: 257, typ: 4, count: 1, value: uint32(height)},
		{tag: 258, typ: 3, count: 1, value: 32},
		{tag: 259, typ: 3, count: 1, value: 1},
		{tag: 273, typ: 4, count: 1, value: 0}, // filled in once pixel offset is known
		{tag: 279, typ: 4, count: 1, value: uint32(len(pixels) * 4)},
		{tag: 339, typ: 3, count: 1, value: 3},
		{tag: 33550, typ: 12, count: 3},
		{tag: 33922, typ: 12, count: 6},
	}

	ifdStart := 8
	ifdSize := 2 + len(entries)*12 + 4
	extraStart := ifdStart + ifdSize

	scaleBytes := &bytes.Buffer{}
	for _, v := range []float64{pixelScaleLon, pixelScaleLat, 0} {
		binary.Write(scaleBytes, binary.LittleEndian, v)
	}
	tiepointBytes := &bytes.Buffer{}
	for _, v := range []float64{0, 0, 0, originLon, originLat, 0} {
		binary.Write(tiepointBytes, binary.LittleEndian, v)
	}

	for i := range entries {
		switch entries[i].tag {
		case 33550:
			entries[i].value = uint32(extraStart)
			entries[i].extra = scaleBytes.Bytes()
		case 33922:
			entries[i].value = uint32(extraStart + scaleBytes.Len())
			entries[i].extra = tiepointBytes.Bytes()
		}
	}
	pixelOffset := extraStart + scaleBytes.Len() + tiepointBytes.Len()
	for i := range entries {
		if entries[i].tag == 273 {
			entries[i].value = uint32(pixelOffset)
		}
	}

	buf := &bytes.Buffer{}
	buf.WriteByte('I')
	buf.WriteByte('I')
	binary.Write(buf, binary.LittleEndian, uint16(42))
	binary.Write(buf, binary.LittleEndian, uint32(ifdStart))

	binary.Write(buf, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(buf, binary.LittleEndian, e.tag)
		binary.Write(buf, binary.LittleEndian, e.typ)
		binary.Write(buf, binary.LittleEndian, e.count)
		binary.Write(buf, binary.LittleEndian, e.value)
	}
	binary.Write(buf, binary.LittleEndian, uint32(0)) // no next IFD

	buf.Write(scaleBytes.Bytes())
	buf.Write(tiepointBytes.Bytes())
	for _, p := range pixels {
		binary.Write(buf, binary.LittleEndian, p)
	}

	return buf.Bytes()
}

func TestDecodeGeoTIFFRoundTrip(t *testing.T) {
	pixels := []float32{1, 2, 3, 4}
	data := buildTestTIFF(2, 2, pixels, -118.3, 34.1, 0.05, 0.05)

	g, err := decodeGeoTIFF(data)
	if err != nil {
		t.Fatalf("decodeGeoTIFF: %v", err)
	}
	if g.Cols != 2 || g.Rows != 2 {
		t.Fatalf("unexpected dimensions %dx%d", g.Cols, g.Rows)
	}
	if g.At(0, 0) != 1 || g.At(1, 1) != 4 {
		t.Fatalf("unexpected pixel values: %v", g.Data)
	}
	if math.Abs(g.West-(-118.3)) > 1e-9 || math.Abs(g.North-34.1) > 1e-9 {
		t.Fatalf("unexpected bounds: west=%v north=%v", g.West, g.North)
	}
}

func TestDecodeGeoTIFFRejectsBigEndian(t *testing.T) {
	if _, err := decodeGeoTIFF([]byte{'M', 'M', 0, 42, 0, 0, 0, 8}); err == nil {
		t.Fatalf("expected an error for big-endian input")
	}
}

func TestRangesetURLShape(t *testing.T) {
	bbox := geo.BoundingBox{West: -119, South: 33, East: -117, North: 35}
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	u := rangesetURL("https://harmony.example", domain.PollutionThresholds[domain.GasNO2], bbox, start, end)

	if !bytes.Contains([]byte(u), []byte("ogc-api-coverages/1.0.0/collections/")) {
		t.Fatalf("URL missing expected path segment: %s", u)
	}
	if !bytes.Contains([]byte(u), []byte("C2930763263-LARC_CLOUD")) {
		t.Fatalf("URL missing collection ID: %s", u)
	}
}

func TestBackoffDelayCapsAtThirtySeconds(t *testing.T) {
	if d := backoffDelay(1); d != retryBaseDelay {
		t.Fatalf("expected base delay on first attempt, got %v", d)
	}
	if d := backoffDelay(10); d != retryCapDelay {
		t.Fatalf("expected capped delay on high attempt count, got %v", d)
	}
}

func TestHourWindowFloorsToHour(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 37, 12, 0, time.UTC)
	start, end := HourWindow(now)
	if !end.Equal(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end: %v", end)
	}
	if !start.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start: %v", start)
	}
}
