package rasternorm

import (
	"testing"
	"time"

	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/raster"
)

func TestNormalizeSkipsNoData(t *testing.T) {
	g := raster.NewGrid(-1, -1, 1, 1, 4, 4)
	g.Set(0, 0, 3e16) // hazardous NO2 value

	var rows []Row
	err := Normalize(g, domain.GasNO2, time.Now(), 0, 100, func(chunk []Row) error {
		rows = append(rows, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one non-no-data row, got %d", len(rows))
	}
	if rows[0].SeverityLevel != 4 {
		t.Errorf("severity = %d, want 4", rows[0].SeverityLevel)
	}
}

func TestNormalizeRespectsMaxCells(t *testing.T) {
	g := raster.NewGrid(-1, -1, 1, 1, 100, 100)
	for i := range g.Data {
		g.Data[i] = 1e15
	}

	var total int
	err := Normalize(g, domain.GasNO2, time.Now(), 50, 2000, func(chunk []Row) error {
		total += len(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if total > 50 {
		t.Errorf("emitted %d rows, want <= 50 given maxCells=50", total)
	}
}

func TestNormalizeChunking(t *testing.T) {
	g := raster.NewGrid(-1, -1, 1, 1, 10, 10)
	for i := range g.Data {
		g.Data[i] = 1e15
	}

	var chunkSizes []int
	err := Normalize(g, domain.GasNO2, time.Now(), 0, 30, func(chunk []Row) error {
		chunkSizes = append(chunkSizes, len(chunk))
		return nil
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, n := range chunkSizes {
		if n > 30 {
			t.Errorf("chunk size %d exceeds requested chunkSize 30", n)
		}
	}
}
