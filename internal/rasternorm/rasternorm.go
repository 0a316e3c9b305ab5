// Package rasternorm turns a downloaded single-gas raster into the
// normalized (value, severity, polygon) rows the spatial grid store expects.
package rasternorm

import (
	"fmt"
	"time"

	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/raster"
)

const (
	// DefaultMaxCells caps the emitted cell count per gas-hour.
	DefaultMaxCells = 5000
	// DefaultChunkSize groups rows for bulk insertion.
	DefaultChunkSize = 2000
)

// Row is one normalized grid cell, ready for bulk insertion.
type Row struct {
	Timestamp      time.Time
	GasType        domain.GasType
	GeomWKT        string
	PollutionValue float64
	SeverityLevel  int
}

// stride returns the subsample step so that the emitted cell count
// ceil(rows/step)*ceil(cols/step) stays at or below maxCells.
func stride(cols, rows, maxCells int) int {
	total := cols * rows
	if total <= maxCells || maxCells <= 0 {
		return 1
	}
	step := 1
	for ((cols+step-1)/step)*((rows+step-1)/step) > maxCells {
		step++
	}
	return step
}

// Normalize iterates g's cells in row-major order starting at (north, west),
// skipping no-data pixels, and invokes emit with chunks of at most
// chunkSize rows. The subsample stride is chosen so the total emitted row
// count stays at or below maxCells.
func Normalize(g *raster.Grid, gas domain.GasType, ts time.Time, maxCells, chunkSize int, emit func([]Row) error) error {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	step := stride(g.Cols, g.Rows, maxCells)
	dLon, dLat := g.CellSize()
	halfLon, halfLat := dLon/2, dLat/2

	var chunk []Row
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := emit(chunk); err != nil {
			return err
		}
		chunk = chunk[:0]
		return nil
	}

	for row := 0; row < g.Rows; row += step {
		for col := 0; col < g.Cols; col += step {
			v := g.At(row, col)
			if g.IsNoData(v) {
				continue
			}
			lon, lat := g.CellCenter(row, col)
			_, sev := domain.ClassifyPollutionLevel(float64(v), gas)

			chunk = append(chunk, Row{
				Timestamp:      ts,
				GasType:        gas,
				GeomWKT:        cellPolygonWKT(lon, lat, halfLon, halfLat),
				PollutionValue: float64(v),
				SeverityLevel:  sev,
			})
			if len(chunk) >= chunkSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// cellPolygonWKT builds a closed axis-aligned bounding polygon (five points,
// first == last) around a pixel center.
func cellPolygonWKT(lon, lat, halfLon, halfLat float64) string {
	w, e := lon-halfLon, lon+halfLon
	s, n := lat-halfLat, lat+halfLat
	return fmt.Sprintf("POLYGON((%g %g, %g %g, %g %g, %g %g, %g %g))",
		w, s, e, s, e, n, w, n, w, s)
}

// ToGridCells converts a chunk of Rows into database.PollutionGridCell
// values ready for DB.BulkInsertPollutionGridCells.
func ToGridCells(rows []Row) []database.PollutionGridCell {
	out := make([]database.PollutionGridCell, len(rows))
	for i, r := range rows {
		out[i] = database.PollutionGridCell{
			Timestamp:      r.Timestamp,
			GasType:        string(r.GasType),
			GeomWKT:        r.GeomWKT,
			PollutionValue: r.PollutionValue,
			SeverityLevel:  r.SeverityLevel,
		}
	}
	return out
}
