package utils

import "math"

// WholeNumber converts v to an int when it has no fractional part and is
// finite. JavaScript numbers arrive as float64 and must not be truncated.
func WholeNumber(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}
