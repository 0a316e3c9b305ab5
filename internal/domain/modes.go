package domain

import "strings"

// Mode is a canonical travel mode for route scoring.
type Mode string

const (
	ModeCommute Mode = "commute"
	ModeJogger  Mode = "jogger"
	ModeCyclist Mode = "cyclist"
)

// modeAliases maps user-facing spellings onto the canonical Mode values.
var modeAliases = map[string]Mode{
	"commute":  ModeCommute,
	"commuter": ModeCommute,
	"jogger":   ModeJogger,
	"jog":      ModeJogger,
	"cyclist":  ModeCyclist,
	"cycle":    ModeCyclist,
}

// ParseMode normalizes user input (trimmed, lowercased, alias-resolved) to a
// canonical Mode. Unknown input defaults to ModeCommute.
func ParseMode(raw string) Mode {
	key := strings.ToLower(strings.TrimSpace(raw))
	if m, ok := modeAliases[key]; ok {
		return m
	}
	return ModeCommute
}

// ModeWeights holds the (α, β, γ) linear-combination weights for a mode's
// edge cost: weight = modifier * (α*exposure + β*distance_km + γ*time_h).
type ModeWeights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// modeWeightTable is the fixed per-mode (α, β, γ) table. Every row sums to 1.0.
var modeWeightTable = map[Mode]ModeWeights{
	ModeCommute: {Alpha: 0.2, Beta: 0.4, Gamma: 0.4},
	ModeJogger:  {Alpha: 0.7, Beta: 0.15, Gamma: 0.15},
	ModeCyclist: {Alpha: 0.4, Beta: 0.3, Gamma: 0.3},
}

// GetWeights returns the (α, β, γ) tuple for mode, defaulting to commute's.
func GetWeights(mode Mode) ModeWeights {
	if w, ok := modeWeightTable[mode]; ok {
		return w
	}
	return modeWeightTable[ModeCommute]
}

// EdgeTags carries the subset of an OSM way's tags that mode_modifier and the
// highway speed-default table care about.
type EdgeTags struct {
	Highway          string // first element if the source tag was a list
	CyclewayPresent  bool
	LeisurePark      bool
	FootAccessible   bool // explicit access=yes/foot=yes on a footway/path
}

const (
	modifierMin = 0.1
	modifierMax = 5.0
)

// ModeModifier computes the mode-specific cost multiplier for an edge,
// clamped to [0.1, 5.0].
func ModeModifier(tags EdgeTags, mode Mode) float64 {
	hw := strings.ToLower(tags.Highway)
	modifier := 1.0

	switch mode {
	case ModeCommute:
		if isFootwayLike(hw) && !tags.FootAccessible {
			modifier *= 1.2
		}
	case ModeJogger:
		if isMotorwayLike(hw) {
			modifier *= 2.0
		}
		if isFootwayLike(hw) || tags.LeisurePark {
			modifier *= 0.5
		}
	case ModeCyclist:
		if hw == "motorway" || hw == "trunk" {
			modifier *= 1.5
		}
		if tags.CyclewayPresent {
			modifier *= 0.7
		}
	}

	return clamp(modifier, modifierMin, modifierMax)
}

func isFootwayLike(hw string) bool {
	switch hw {
	case "footway", "path", "pedestrian":
		return true
	}
	return false
}

func isMotorwayLike(hw string) bool {
	switch hw {
	case "motorway", "motorway_link", "trunk", "trunk_link":
		return true
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return ClampGeneric(v, lo, hi)
}

// ClampGeneric restricts v to [lo, hi].
func ClampGeneric(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HighwaySpeedDefaultsKPH is the fallback speed table keyed by highway class,
// used when an edge carries no explicit speed tag.
var HighwaySpeedDefaultsKPH = map[string]float64{
	"motorway":       100,
	"motorway_link":  100,
	"trunk":          80,
	"trunk_link":     80,
	"primary":        60,
	"primary_link":   60,
	"secondary":      50,
	"secondary_link": 50,
	"tertiary":       40,
	"tertiary_link":  40,
	"residential":    30,
	"unclassified":   30,
	"service":        20,
	"path":           5,
	"foot":           5,
	"footway":        5,
	"pedestrian":     5,
}

// SpeedKPHForHighway returns the default speed for a highway class, falling
// back to the residential default when the class is unrecognized.
func SpeedKPHForHighway(highway string) float64 {
	if v, ok := HighwaySpeedDefaultsKPH[strings.ToLower(highway)]; ok {
		return v
	}
	return HighwaySpeedDefaultsKPH["residential"]
}
