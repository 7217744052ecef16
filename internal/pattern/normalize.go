package pattern

import (
	"fmt"
	"math"
)

// NormalizationMode selects how series are rescaled before comparison.
type NormalizationMode string

const (
	NormalizeMinMax NormalizationMode = "minmax"
	NormalizeZScore NormalizationMode = "zscore"
)

// ParseNormalizationMode parses "minmax" or "zscore".
func ParseNormalizationMode(s string) (NormalizationMode, error) {
	switch m := NormalizationMode(s); m {
	case NormalizeMinMax, NormalizeZScore:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown normalization mode %q", ErrInvalidConfig, s)
}

// Normalize rescales values with the given mode.
func Normalize(mode NormalizationMode, values []float64) ([]float64, error) {
	switch mode {
	case NormalizeMinMax:
		return MinMaxNormalize(values), nil
	case NormalizeZScore:
		return ZNormalize(values), nil
	}
	return nil, fmt.Errorf("%w: unknown normalization mode %q", ErrInvalidConfig, mode)
}

// MinMaxNormalize maps values into [0,1] via (v-min)/(max-min).
// A constant series maps to 0.5 everywhere.
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	spread := hi - lo
	if !(spread > 0) || math.IsInf(spread, 0) {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	for i, v := range values {
		out[i] = (v - lo) / spread
	}
	return out
}

// ZNormalize maps values to zero mean and unit (population) variance.
// A constant series maps to 0 everywhere, unlike MinMaxNormalize.
func ZNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	n := len(values)
	if n == 0 {
		return out
	}

	// sum/n of a constant series can miss the value by rounding, so flat
	// input is detected on the range instead of on std.
	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return out
	}
	mean := sum / float64(n)

	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	std := math.Sqrt(sqSum / float64(n))

	if !(std > 0) || math.IsInf(std, 0) {
		return out
	}

	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
