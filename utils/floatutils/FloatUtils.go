// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r1"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipInterval is a wrapper to use Clip with an r1.Interval instead of
// a separate max and min value
func ClipInterval(value float64, interval r1.Interval) float64 {
	return Clip(value, interval.Min, interval.Max)
}

// ClipSlice clips each element of values in place to the matching
// interval in bounds.
func ClipSlice(values []float64, bounds []r1.Interval) {
	for i := range values {
		values[i] = ClipInterval(values[i], bounds[i])
	}
}

// ArgMax returns the index of the first maximum value in a slice of
// float64.
func ArgMax(values []float64) int {
	index := 0
	for i, value := range values {
		if value > values[index] {
			index = i
		}
	}
	return index
}

// Min calculates and returns the minimum float64 in a list
func Min(floats ...float64) float64 {
	min := floats[0]
	for _, val := range floats {
		if val < min {
			min = val
		}
	}
	return min
}

// Max calculates and returns the maximum float64 in a list
func Max(floats ...float64) float64 {
	max := floats[0]
	for _, val := range floats {
		if val > max {
			max = val
		}
	}
	return max
}

// ConcatRows concatenates two row-major matrices with the same number
// of rows into one matrix whose rows hold a's row followed by b's row.
func ConcatRows(a []float64, aDim int, b []float64, bDim int,
	rows int) []float64 {
	out := make([]float64, rows*(aDim+bDim))
	for i := 0; i < rows; i++ {
		copy(out[i*(aDim+bDim):], a[i*aDim:(i+1)*aDim])
		copy(out[i*(aDim+bDim)+aDim:], b[i*bDim:(i+1)*bDim])
	}
	return out
}

// Softmax normalizes logits into a probability distribution in place,
// shifting by the maximum logit first so large values cannot overflow.
func Softmax(logits []float64) {
	max := Max(logits...)
	for i, logit := range logits {
		logits[i] = math.Exp(logit - max)
	}
	floats.Scale(1.0/floats.Sum(logits), logits)
}
