// Package floatutils provides utilities for working with floats
package floatutils

import "math"

// Clip clips a floating point to within a minimum and maximum value
func Clip(value, min, max float64) float64 {
	return math.Max(math.Min(value, max), min)
}

// ArgMax returns the index of the first maximum value in a non-empty
// slice of float64
func ArgMax(values []float64) int {
	argmax := 0
	for i, value := range values {
		if value > values[argmax] {
			argmax = i
		}
	}
	return argmax
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
