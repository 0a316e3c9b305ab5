package upes

import (
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/raster"
)

// SatelliteScore computes the per-cell gas-weighted satellite score from a
// set of normalized per-gas grids, all sharing the same bounds. Missing
// gases are dropped per cell and the remaining weights renormalized; a cell
// with no gases present stays no-data.
func SatelliteScore(normalized map[domain.GasType]*raster.Grid) *raster.Grid {
	var any *raster.Grid
	for _, g := range normalized {
		any = g
		break
	}
	if any == nil {
		return nil
	}
	out := raster.NewGrid(any.West, any.South, any.East, any.North, any.Cols, any.Rows)

	for i := range out.Data {
		var weighted, weightSum float64
		for gas, g := range normalized {
			v := g.Data[i]
			if g.IsNoData(v) {
				continue
			}
			w := domain.UPESDefaultWeights[gas]
			weighted += w * float64(v)
			weightSum += w
		}
		if weightSum > 0 {
			out.Data[i] = float32(weighted / weightSum)
		}
	}
	return out
}

// HumidityDispersionFactor implements HDF = 1 + 0.3*(humidity%/100 - 0.5),
// clamped to [0.85, 1.15].
func HumidityDispersionFactor(humidityPct float64) float64 {
	hdf := 1 + 0.3*(humidityPct/100-0.5)
	return domain.ClampGeneric(hdf, 0.85, 1.15)
}

// WindFactor implements WTF = max(0.7, 1 - 0.02*wind_kph), clamped to
// [0.7, 1.0]. More wind disperses pollution, lowering the score.
func WindFactor(windKPH float64) float64 {
	wtf := 1 - 0.02*windKPH
	return domain.ClampGeneric(wtf, 0.7, 1.0)
}

// TrafficFactor implements TF = 1 + alpha*trafficDensity; with alpha 0 (no
// traffic source configured) this is always 1.0.
func TrafficFactor(alpha, trafficDensity float64) float64 {
	return 1 + alpha*trafficDensity
}

// CombineFinal multiplies the satellite score by the three scalar
// environmental modifiers and clamps the result to [0,1].
func CombineFinal(satellite *raster.Grid, hdf, wtf, tf float64) *raster.Grid {
	out := raster.NewGrid(satellite.West, satellite.South, satellite.East, satellite.North, satellite.Cols, satellite.Rows)
	for i, v := range satellite.Data {
		if satellite.IsNoData(v) {
			continue
		}
		raw := float64(v) * hdf * wtf * tf
		out.Data[i] = float32(domain.ClampGeneric(raw, 0, 1))
	}
	return out
}

// ApplyEMA blends raw with a previous final-score grid cell-wise:
// final = lambda*raw + (1-lambda)*previous. Cells missing in raw keep their
// previous value (when available); cells missing in both stay no-data.
// previous may be nil, in which case raw is returned unchanged.
func ApplyEMA(raw *raster.Grid, previous *raster.Grid, lambda float64) *raster.Grid {
	if previous == nil || previous.Cols != raw.Cols || previous.Rows != raw.Rows {
		return raw
	}
	out := raster.NewGrid(raw.West, raw.South, raw.East, raw.North, raw.Cols, raw.Rows)
	for i := range raw.Data {
		rawMissing := raw.IsNoData(raw.Data[i])
		prevMissing := previous.IsNoData(previous.Data[i])
		switch {
		case !rawMissing && !prevMissing:
			out.Data[i] = float32(lambda*float64(raw.Data[i]) + (1-lambda)*float64(previous.Data[i]))
		case !rawMissing:
			out.Data[i] = raw.Data[i]
		case !prevMissing:
			out.Data[i] = previous.Data[i]
		}
	}
	return out
}
