package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics shared by the analyzers, backed by gonum

// Mean calculates the arithmetic mean of a slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.StdDev(data, nil)
}

// Median returns the middle value; for even lengths the two middle values are averaged.
// The input is not modified.
func Median(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0.0
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Percentile calculates the p-th percentile (p between 0 and 1) with linear interpolation
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 1 {
		return 0.0
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Energy returns the sum of squares
func Energy(data []float64) float64 {
	return floats.Dot(data, data)
}

// RemoveDC returns a copy of data with its mean subtracted
func RemoveDC(data []float64) []float64 {
	out := slices.Clone(data)
	if len(out) == 0 {
		return out
	}
	floats.AddConst(-Mean(out), out)
	return out
}

// ParabolicPeak refines the location of a peak at index i by fitting a parabola
// through i-1, i, i+1. It returns the fractional index and the interpolated value.
// Edges and flat neighborhoods return i unchanged.
func ParabolicPeak(data []float64, i int) (float64, float64) {
	if i <= 0 || i >= len(data)-1 {
		return float64(i), data[i]
	}

	a, b, c := data[i-1], data[i], data[i+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(i), b
	}

	offset := 0.5 * (a - c) / denom
	if offset > 0.5 || offset < -0.5 {
		return float64(i), b
	}

	return float64(i) + offset, b - 0.25*(a-c)*offset
}

// Clamp constrains value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// PrevPowerOfTwo returns the largest power of 2 that is <= n (0 for n < 1)
func PrevPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
