package utils

import "math"

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// MaxInt returns the maximum of two ints.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MinInt returns the minimum of two ints.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ClampInt restricts n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	return MaxInt(lo, MinInt(n, hi))
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
