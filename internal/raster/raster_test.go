package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRowColAtAndCellCenter(t *testing.T) {
	g := NewGrid(-10, -10, 10, 10, 20, 20)
	row, col, ok := g.RowColAt(0, 0)
	if !ok {
		t.Fatal("expected (0,0) to be inside the grid")
	}
	lon, lat := g.CellCenter(row, col)
	if math.Abs(lon) > 1 || math.Abs(lat) > 1 {
		t.Errorf("cell center at origin = (%v, %v), want near (0,0)", lon, lat)
	}
}

func TestRowColAtOutsideGrid(t *testing.T) {
	g := NewGrid(-10, -10, 10, 10, 20, 20)
	if _, _, ok := g.RowColAt(100, 100); ok {
		t.Error("expected point outside bounds to report not-ok")
	}
}

func TestSampleNearestFallback(t *testing.T) {
	g := NewGrid(-10, -10, 10, 10, 4, 4)
	v, found := g.SampleNearest(0, 0, 0.5)
	if found {
		t.Error("expected no-data cell to report not found")
	}
	if v != 0.5 {
		t.Errorf("SampleNearest fallback = %v, want 0.5", v)
	}

	row, col, _ := g.RowColAt(0, 0)
	g.Set(row, col, 0.75)
	v, found = g.SampleNearest(0, 0, 0.5)
	if !found || v != 0.75 {
		t.Errorf("SampleNearest = (%v, %v), want (0.75, true)", v, found)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := NewGrid(-118.3, 33.9, -118.1, 34.1, 10, 10)
	g.Set(3, 4, 0.42)

	path := filepath.Join(dir, "final_score_20260101_00.tif")
	if err := g.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Cols != g.Cols || got.Rows != g.Rows {
		t.Errorf("dims = (%d,%d), want (%d,%d)", got.Cols, got.Rows, g.Cols, g.Rows)
	}
	if got.At(3, 4) != 0.42 {
		t.Errorf("At(3,4) = %v, want 0.42", got.At(3, 4))
	}
}

func TestLatestFileInDirPicksMostRecent(t *testing.T) {
	dir := t.TempDir()
	older := NewGrid(-1, -1, 1, 1, 2, 2)
	newer := NewGrid(-1, -1, 1, 1, 2, 2)

	olderPath := filepath.Join(dir, "final_score_20260101_00.tif")
	newerPath := filepath.Join(dir, "final_score_20260101_01.tif")
	if err := older.WriteFile(olderPath); err != nil {
		t.Fatal(err)
	}
	if err := newer.WriteFile(newerPath); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(olderPath, past, past); err != nil {
		t.Fatal(err)
	}

	latest, err := LatestFileInDir(dir, "final_score_*.tif")
	if err != nil {
		t.Fatalf("LatestFileInDir: %v", err)
	}
	if latest == "" {
		t.Fatal("expected a latest file")
	}
	if latest != newerPath {
		t.Fatalf("latest = %q, want %q", latest, newerPath)
	}
}
