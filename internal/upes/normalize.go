package upes

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/raster"
)

// EmpiricalPercentileBounds computes the 5th and 99th percentile of g's
// present (non-no-data) values, then clamps them to gas's threshold
// endpoints.
func EmpiricalPercentileBounds(g *raster.Grid, gas domain.GasType) (low, high float64) {
	var values []float64
	for _, v := range g.Data {
		if g.IsNoData(v) {
			continue
		}
		values = append(values, float64(v))
	}
	if len(values) == 0 {
		return domain.ClampToThresholdEndpoints(gas, 0, 1)
	}
	sort.Float64s(values)
	low = stat.Quantile(0.05, stat.Empirical, values, nil)
	high = stat.Quantile(0.99, stat.Empirical, values, nil)
	return domain.ClampToThresholdEndpoints(gas, low, high)
}

// NormalizeGas maps g's values into [0,1] using (low, high): values below
// low clamp to 0, above high clamp to 1, linear in between. No-data cells
// stay no-data.
func NormalizeGas(g *raster.Grid, low, high float64) *raster.Grid {
	out := raster.NewGrid(g.West, g.South, g.East, g.North, g.Cols, g.Rows)
	span := high - low
	if span <= 0 {
		span = 1e-9
	}
	for i, v := range g.Data {
		if g.IsNoData(v) {
			continue
		}
		norm := (float64(v) - low) / span
		if norm < 0 {
			norm = 0
		}
		if norm > 1 {
			norm = 1
		}
		out.Data[i] = float32(norm)
	}
	return out
}
