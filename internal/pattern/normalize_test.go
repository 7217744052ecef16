package pattern_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/polypattern/internal/pattern"
)

func TestMinMaxNormalize(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, pattern.MinMaxNormalize([]float64{2, 4, 6}))

	for _, v := range []float64{0, 0.37, 1, -5} {
		assert.Equal(t, []float64{0.5, 0.5, 0.5}, pattern.MinMaxNormalize([]float64{v, v, v}), "constant %v", v)
	}

	assert.Empty(t, pattern.MinMaxNormalize(nil))
}

func TestZNormalize(t *testing.T) {
	out := pattern.ZNormalize([]float64{1, 2, 3})

	var mean, variance float64
	for _, v := range out {
		mean += v
	}
	mean /= float64(len(out))
	for _, v := range out {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(out))

	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, variance, 1e-12)
	assert.InDelta(t, -math.Sqrt(1.5), out[0], 1e-12)

	for _, v := range []float64{0, 0.37, 1} {
		assert.Equal(t, []float64{0, 0, 0}, pattern.ZNormalize([]float64{v, v, v}), "constant %v", v)
	}

	assert.Empty(t, pattern.ZNormalize([]float64{}))
}

func TestZNormalize_ConstantNotRepresentable(t *testing.T) {
	for _, v := range []float64{0.1, 0.2, 0.3, 0.37, 0.55, 0.7, 0.9} {
		for _, n := range []int{3, 5, 10, 24} {
			values := make([]float64, n)
			for i := range values {
				values[i] = v
			}
			assert.Equal(t, make([]float64, n), pattern.ZNormalize(values), "v=%v n=%d", v, n)
		}
	}
}

func TestNormalize_Modes(t *testing.T) {
	values := []float64{1, 1, 1}

	mm, err := pattern.Normalize(pattern.NormalizeMinMax, values)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, mm)

	z, err := pattern.Normalize(pattern.NormalizeZScore, values)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, z)

	_, err = pattern.Normalize("robust", values)
	assert.True(t, errors.Is(err, pattern.ErrInvalidConfig))
}

func TestParseNormalizationMode(t *testing.T) {
	m, err := pattern.ParseNormalizationMode("zscore")
	assert.NoError(t, err)
	assert.Equal(t, pattern.NormalizeZScore, m)

	_, err = pattern.ParseNormalizationMode("")
	assert.ErrorIs(t, err, pattern.ErrInvalidConfig)
}
