package upes

import (
	"math"
	"testing"

	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
)

func TestAggregateToGridAverages(t *testing.T) {
	samples := []database.GridCellValue{
		{Lon: -118.2, Lat: 34.05, PollutionValue: 1e16},
		{Lon: -118.2, Lat: 34.05, PollutionValue: 3e16},
	}
	bbox := geo.BoundingBox{West: -118.3, South: 34.0, East: -118.1, North: 34.1}
	g := AggregateToGrid(samples, bbox, 0.1)
	row, col, ok := g.RowColAt(-118.2, 34.05)
	if !ok {
		t.Fatal("expected sample point inside grid")
	}
	if got := g.At(row, col); got != 2e16 {
		t.Errorf("aggregated value = %v, want 2e16 (mean)", got)
	}
}

func TestHumidityDispersionFactorBounds(t *testing.T) {
	if v := HumidityDispersionFactor(0); v != 0.85 {
		t.Errorf("HDF(0) = %v, want 0.85", v)
	}
	if v := HumidityDispersionFactor(100); v != 1.15 {
		t.Errorf("HDF(100) = %v, want 1.15", v)
	}
	if v := HumidityDispersionFactor(50); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("HDF(50) = %v, want 1.0", v)
	}
}

func TestWindFactorBounds(t *testing.T) {
	if v := WindFactor(0); v != 1.0 {
		t.Errorf("WTF(0) = %v, want 1.0", v)
	}
	if v := WindFactor(100); v != 0.7 {
		t.Errorf("WTF(100) = %v, want 0.7 (floor)", v)
	}
}

func TestSatelliteScoreRenormalizesMissingGases(t *testing.T) {
	no2 := raster.NewGrid(-1, -1, 1, 1, 1, 1)
	no2.Set(0, 0, 1.0)
	pm := raster.NewGrid(-1, -1, 1, 1, 1, 1) // stays no-data

	score := SatelliteScore(map[domain.GasType]*raster.Grid{
		domain.GasNO2: no2,
		domain.GasPM:  pm,
	})
	if score == nil {
		t.Fatal("expected a non-nil score grid")
	}
	if got := score.At(0, 0); got != 1.0 {
		t.Errorf("renormalized score = %v, want 1.0 (only NO2 present)", got)
	}
}

func TestApplyEMABlends(t *testing.T) {
	raw := raster.NewGrid(-1, -1, 1, 1, 1, 1)
	raw.Set(0, 0, 1.0)
	prev := raster.NewGrid(-1, -1, 1, 1, 1, 1)
	prev.Set(0, 0, 0.0)

	final := ApplyEMA(raw, prev, 0.6)
	if got := final.At(0, 0); math.Abs(float64(got)-0.6) > 1e-6 {
		t.Errorf("EMA blend = %v, want 0.6", got)
	}
}

func TestApplyEMANoPreviousReturnsRaw(t *testing.T) {
	raw := raster.NewGrid(-1, -1, 1, 1, 1, 1)
	raw.Set(0, 0, 0.33)
	got := ApplyEMA(raw, nil, 0.6)
	if got != raw {
		t.Error("expected ApplyEMA with nil previous to return raw unchanged")
	}
}
