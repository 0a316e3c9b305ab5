package domain

// SensitivityScale returns the multiplier applied to alert thresholds for a
// user's exposure_sensitivity_level (1..5): more sensitive users trigger
// alerts at a smaller relative change.
func SensitivityScale(level int) float64 {
	switch {
	case level <= 2:
		return 1.0
	case level <= 4:
		return 0.7
	default:
		return 0.5
	}
}

// SensitivityLabel returns the human-readable label for a sensitivity level.
func SensitivityLabel(level int) string {
	switch {
	case level <= 2:
		return "Normal"
	case level <= 4:
		return "Sensitive"
	default:
		return "Asthmatic"
	}
}
