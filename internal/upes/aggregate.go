package upes

import (
	"github.com/aeris-platform/aeris/internal/database"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/raster"
)

// AggregateToGrid bins raw (lon, lat, value) samples onto a regular grid of
// the given resolution over bbox, averaging all samples whose centroid
// falls in each cell. Cells with no samples remain no-data.
func AggregateToGrid(samples []database.GridCellValue, bbox geo.BoundingBox, resolutionDeg float64) *raster.Grid {
	cols := int((bbox.East - bbox.West) / resolutionDeg)
	rows := int((bbox.North - bbox.South) / resolutionDeg)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	g := raster.NewGrid(bbox.West, bbox.South, bbox.East, bbox.North, cols, rows)

	sums := make([]float64, cols*rows)
	counts := make([]int, cols*rows)

	for _, s := range samples {
		row, col, ok := g.RowColAt(s.Lon, s.Lat)
		if !ok {
			continue
		}
		idx := row*cols + col
		sums[idx] += s.PollutionValue
		counts[idx]++
	}

	for i, c := range counts {
		if c > 0 {
			g.Data[i] = float32(sums[i] / float64(c))
		}
	}
	return g
}
