package utils

import (
	"math"
)

// RoundSix rounds to six decimals, used to keep lattice coordinates free of accumulation noise
func RoundSix(x float64) float64 {
	return math.Round(x*1.e6) / 1.e6
}

// Index1D returns the row major position of (i, j) in an array with jMax columns
func Index1D(i, j, jMax int) int {
	return j + jMax*i
}

func Index2D(I, jMax int) (i, j int) {
	i = I / jMax
	j = I - i*jMax
	return
}

func ClampInt(i, min, max int) int {
	if i < min {
		return min
	}
	if i > max {
		return max
	}
	return i
}
