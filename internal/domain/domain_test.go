package domain

import "testing"

func TestClassifyPollutionLevel(t *testing.T) {
	cases := []struct {
		value    float64
		gas      GasType
		wantSev  int
	}{
		{1e14, GasNO2, 0},
		{5e15, GasNO2, 1},
		{1e16, GasNO2, 2},
		{2e16, GasNO2, 3},
		{3e16, GasNO2, 4},
		{9e16, GasNO2, 4},
	}
	for _, c := range cases {
		_, sev := ClassifyPollutionLevel(c.value, c.gas)
		if sev != c.wantSev {
			t.Errorf("ClassifyPollutionLevel(%v, %v) severity = %d, want %d", c.value, c.gas, sev, c.wantSev)
		}
	}
}

func TestModeWeightsSumToOne(t *testing.T) {
	for _, mode := range []Mode{ModeCommute, ModeJogger, ModeCyclist} {
		w := GetWeights(mode)
		sum := w.Alpha + w.Beta + w.Gamma
		if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("mode %v weights sum to %v, want 1.0", mode, sum)
		}
	}
}

func TestModeModifierBounds(t *testing.T) {
	tags := EdgeTags{Highway: "motorway"}
	for _, mode := range []Mode{ModeCommute, ModeJogger, ModeCyclist} {
		m := ModeModifier(tags, mode)
		if m < modifierMin || m > modifierMax {
			t.Errorf("ModeModifier(%v, %v) = %v out of bounds", tags, mode, m)
		}
	}
}

func TestParseModeAliases(t *testing.T) {
	cases := map[string]Mode{
		"commute":  ModeCommute,
		"Commute":  ModeCommute,
		" commuter ": ModeCommute,
		"jog":      ModeJogger,
		"jogger":   ModeJogger,
		"cycle":    ModeCyclist,
		"cyclist":  ModeCyclist,
		"unknown":  ModeCommute,
	}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSensitivityScale(t *testing.T) {
	cases := map[int]float64{1: 1.0, 2: 1.0, 3: 0.7, 4: 0.7, 5: 0.5}
	for level, want := range cases {
		if got := SensitivityScale(level); got != want {
			t.Errorf("SensitivityScale(%d) = %v, want %v", level, got, want)
		}
	}
}
