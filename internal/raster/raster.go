// Package raster implements a minimal single-band float32 geospatial raster
// container for the UPES engine's score grids. No retrieved example repo
// carries a full GeoTIFF codec dependency (see DESIGN.md), so this format is
// a direct, from-scratch reimplementation of the subset of GeoTIFF's
// contract AERIS actually needs: an equirectangular WGS84 bounding box, a
// regular row-major grid of float32 samples, and a NaN/no-data sentinel. The
// on-disk extension remains ".tif" for drop-in compatibility with the
// documented file layout.
package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// magic identifies the container; version allows future format changes.
const (
	magic   uint32 = 0x41455253 // "AERS"
	version uint32 = 1
)

// Grid is a regular row-major float32 raster over a WGS84 bounding box.
// Row 0 is the northernmost row, column 0 the westernmost column — this is
// the same row-major-from-(north,west) scan order the UPES engine, route
// engine, and alert scorer all share.
type Grid struct {
	West, South, East, North float64
	Cols, Rows               int
	NoData                   float32
	Data                     []float32 // len == Cols*Rows
}

// NewGrid allocates a Grid filled with NoData.
func NewGrid(west, south, east, north float64, cols, rows int) *Grid {
	g := &Grid{
		West: west, South: south, East: east, North: north,
		Cols: cols, Rows: rows, NoData: float32(math.NaN()),
	}
	g.Data = make([]float32, cols*rows)
	for i := range g.Data {
		g.Data[i] = g.NoData
	}
	return g
}

// CellSize returns the (lon, lat) size of a single cell.
func (g *Grid) CellSize() (dLon, dLat float64) {
	return (g.East - g.West) / float64(g.Cols), (g.North - g.South) / float64(g.Rows)
}

// RowColAt returns the (row, col) of the cell containing (lon, lat), or
// false if the point falls outside the grid.
func (g *Grid) RowColAt(lon, lat float64) (row, col int, ok bool) {
	if lon < g.West || lon > g.East || lat < g.South || lat > g.North {
		return 0, 0, false
	}
	dLon, dLat := g.CellSize()
	col = int((lon - g.West) / dLon)
	row = int((g.North - lat) / dLat)
	if col >= g.Cols {
		col = g.Cols - 1
	}
	if row >= g.Rows {
		row = g.Rows - 1
	}
	return row, col, true
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float32 {
	return g.Data[row*g.Cols+col]
}

// Set stores the value at (row, col).
func (g *Grid) Set(row, col int, v float32) {
	g.Data[row*g.Cols+col] = v
}

// IsNoData reports whether v should be treated as missing.
func (g *Grid) IsNoData(v float32) bool {
	return float32IsNaN(v) || v == g.NoData
}

func float32IsNaN(v float32) bool {
	return math.IsNaN(float64(v))
}

// CellCenter returns the (lon, lat) center of cell (row, col).
func (g *Grid) CellCenter(row, col int) (lon, lat float64) {
	dLon, dLat := g.CellSize()
	lon = g.West + (float64(col)+0.5)*dLon
	lat = g.North - (float64(row)+0.5)*dLat
	return
}

// SampleNearest returns the value of the cell containing (lon, lat), the
// fallback value if the point is outside the grid, and whether a real
// sample (not no-data) was found.
func (g *Grid) SampleNearest(lon, lat float64, fallback float64) (float64, bool) {
	row, col, ok := g.RowColAt(lon, lat)
	if !ok {
		return fallback, false
	}
	v := g.At(row, col)
	if g.IsNoData(v) {
		return fallback, false
	}
	return float64(v), true
}

// WriteFile writes g to path atomically: the grid is serialized to a
// temporary file in the same directory, then renamed into place, so readers
// never observe a partially written raster.
func (g *Grid) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("raster: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".raster-*.tmp")
	if err != nil {
		return fmt.Errorf("raster: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	w := bufio.NewWriter(tmp)
	if err := g.encode(w); err != nil {
		tmp.Close()
		return fmt.Errorf("raster: encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("raster: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("raster: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("raster: rename into place: %w", err)
	}
	return nil
}

func (g *Grid) encode(w io.Writer) error {
	header := []interface{}{magic, version, g.West, g.South, g.East, g.North,
		int32(g.Cols), int32(g.Rows), g.NoData}
	for _, f := range header {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, g.Data)
}

// ReadFile loads a Grid previously written by WriteFile.
func ReadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// Decode reads a Grid from r.
func Decode(r io.Reader) (*Grid, error) {
	var m, v uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return nil, fmt.Errorf("raster: read magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("raster: bad magic %x", m)
	}
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, fmt.Errorf("raster: read version: %w", err)
	}
	if v != version {
		return nil, fmt.Errorf("raster: unsupported version %d", v)
	}

	g := &Grid{}
	var cols, rows int32
	fields := []interface{}{&g.West, &g.South, &g.East, &g.North}
	for _, field := range fields {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("raster: read bounds: %w", err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &g.NoData); err != nil {
		return nil, err
	}
	g.Cols, g.Rows = int(cols), int(rows)
	g.Data = make([]float32, g.Cols*g.Rows)
	if err := binary.Read(r, binary.LittleEndian, &g.Data); err != nil {
		return nil, fmt.Errorf("raster: read data: %w", err)
	}
	return g, nil
}

// LatestFileInDir returns the path of the most recently modified file
// matching the given glob pattern within dir, or "" if none match. This
// implements the "latest final_score_*.tif wins" contract.
func LatestFileInDir(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	var latest string
	var latestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mt := info.ModTime().UnixNano(); mt > latestMod {
			latestMod = mt
			latest = m
		}
	}
	return latest, nil
}
