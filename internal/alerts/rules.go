// Package alerts implements the route-scoring and alert-detection tasks:
// sampling UPES along saved routes, and flagging deterioration, hazard,
// wind-shift, and time-based conditions against a user's sensitivity.
package alerts

import (
	"github.com/aeris-platform/aeris/internal/domain"
	"github.com/aeris-platform/aeris/internal/geo"
)

const (
	deteriorationBasePct = 0.15
	hazardThreshold      = 0.85
	timeBasedDeltaFixed  = 0.15
)

// DeteriorationThreshold scales the base 15% deterioration trigger by a
// user's sensitivity: more sensitive users alert on a smaller relative rise.
func DeteriorationThreshold(sensitivityLevel int) float64 {
	return deteriorationBasePct * domain.SensitivityScale(sensitivityLevel)
}

// DetectDeterioration reports whether current has risen by at least the
// sensitivity-scaled percentage over baseline. baseline <= 0 never triggers
// (nothing to compare against yet).
func DetectDeterioration(current, baseline float64, sensitivityLevel int) (bool, float64) {
	if baseline <= 0 {
		return false, 0
	}
	threshold := DeteriorationThreshold(sensitivityLevel)
	pctRise := (current - baseline) / baseline
	// The tolerance keeps a rise of exactly the threshold (0.5 -> 0.575 at
	// 15%) from falling just short through floating-point rounding.
	return pctRise >= threshold-1e-9, threshold
}

// DetectHazard reports whether current has crossed the fixed hazard score.
func DetectHazard(current float64) bool {
	return current >= hazardThreshold
}

// DetectWindShift reports whether current wind conditions are carrying a
// pollution source toward a route: wind speed at or above minSpeedKPH, and
// the wind's direction within maxAngleDeg of bearingDeg, the bearing from
// the source point to the route.
func DetectWindShift(windKPH, windDegree, bearingDeg, minSpeedKPH, maxAngleDeg float64) bool {
	if windKPH < minSpeedKPH {
		return false
	}
	return geo.AngleDiffDeg(windDegree, bearingDeg) <= maxAngleDeg
}

// DetectTimeBased reports whether current has risen by the fixed 0.15 over
// the minimum score observed in the trailing 24h window. hadHistory is false
// when no history rows existed yet, in which case this never triggers.
func DetectTimeBased(current, minLast24h float64, hadHistory bool) bool {
	if !hadHistory {
		return false
	}
	return current >= minLast24h+timeBasedDeltaFixed
}
